package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/auth"
	"github.com/starland/ledger/internal/server/handlers"
	"github.com/starland/ledger/internal/server/middleware"
	"github.com/starland/ledger/internal/service/records"
)

// Deps are the collaborators the engine routes to.
type Deps struct {
	Policy    auth.Policy
	Sessions  middleware.SessionResolver
	Audit     middleware.AuditRecorder
	Auth      *handlers.AuthHandler
	Records   *records.Set
	Dashboard *handlers.DashboardHandler
	Reports   *handlers.ReportHandler
	Admin     *handlers.AdminHandler

	AllowedOrigins []string
	WebDir         string
}

// New wires the Gin engine with required routes and middlewares.
func New(deps Deps, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1", middleware.Audit(deps.Audit))

	api.POST("/auth/login", deps.Auth.Login)
	api.POST("/auth/logout", deps.Auth.Logout)
	api.GET("/auth/session", deps.Auth.Session)
	api.POST("/auth/signup", deps.Auth.Signup)

	authed := api.Group("", middleware.RequireSession(deps.Sessions))
	can := func(action auth.Action, resource string) gin.HandlerFunc {
		return middleware.RequirePermission(deps.Policy, action, resource)
	}

	for _, m := range deps.Records.All() {
		h := handlers.NewRecordHandler(m, logger.Named("handlers.records"))
		res := m.Kind().Resource
		g := authed.Group(RecordPath(m.Kind()))
		g.POST("", can(auth.ActionCreate, res), h.Create)
		g.GET("", can(auth.ActionRead, res), h.List)
		g.GET("/:id", can(auth.ActionRead, res), h.Get)
		g.PUT("/:id", can(auth.ActionUpdate, res), h.Update)
		g.DELETE("/:id", can(auth.ActionDelete, res), h.Delete)
	}
	authed.GET("/materials/summary", can(auth.ActionRead, auth.ResourceMaterials), deps.Dashboard.Materials)

	authed.GET("/dashboard/summary", can(auth.ActionRead, auth.ResourceReports), deps.Dashboard.Summary)
	authed.GET("/dashboard/entry", can(auth.ActionRead, auth.ResourceSales), deps.Dashboard.Entry)
	authed.GET("/dashboard/snapshots", can(auth.ActionRead, auth.ResourceReports), deps.Dashboard.Snapshots)

	authed.GET("/reports", can(auth.ActionRead, auth.ResourceReports), deps.Reports.Catalog)
	authed.GET("/reports/:id", can(auth.ActionRead, auth.ResourceReports), deps.Reports.Export)
	authed.POST("/reports/:id/archive", can(auth.ActionCreate, auth.ResourceReports), deps.Reports.Archive)

	authed.GET("/audit", can(auth.ActionRead, auth.ResourceAudit), deps.Reports.AuditList)
	authed.GET("/audit/export", can(auth.ActionRead, auth.ResourceAudit), deps.Reports.AuditExport)
	authed.DELETE("/audit", can(auth.ActionDelete, auth.ResourceAudit), deps.Reports.AuditClear)

	authed.GET("/users", can(auth.ActionRead, auth.ResourceUsers), deps.Admin.Users)
	authed.POST("/users", can(auth.ActionCreate, auth.ResourceUsers), deps.Admin.CreateUser)
	authed.PUT("/users/:id", can(auth.ActionUpdate, auth.ResourceUsers), deps.Admin.UpdateUser)

	privileged := middleware.RequirePrivileged(deps.Policy)
	authed.POST("/sync", privileged, deps.Admin.Sync)
	authed.GET("/sync/status", privileged, deps.Admin.SyncStatus)
	authed.POST("/sync/:id/requeue", privileged, deps.Admin.Requeue)

	if deps.WebDir != "" {
		files := http.FileServer(http.Dir(deps.WebDir))
		r.NoRoute(middleware.PageGuard(deps.Sessions, deps.Policy), gin.WrapH(files))
	}

	logger.Info("router initialized")
	return r
}

// RecordPath is the API path of a record kind: materials-usage is served at /materials/usage.
func RecordPath(k records.Kind) string {
	return "/" + strings.ReplaceAll(k.Name, "-", "/")
}
