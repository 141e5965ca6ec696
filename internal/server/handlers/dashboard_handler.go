package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/service/dashboard"
)

const defaultSnapshotLimit = 30

// Dashboards computes summaries.
type Dashboards interface {
	Summarize(ctx context.Context, f dashboard.Filter) (models.Summary, error)
	Entry(ctx context.Context) (models.Summary, error)
}

// Inventory summarises material stock.
type Inventory interface {
	InventorySummary(ctx context.Context, from, to string) ([]models.InventoryLine, error)
}

// SnapshotReader lists archived daily snapshots.
type SnapshotReader interface {
	ListDailyReports(ctx context.Context, limit int64) ([]models.DailyReport, error)
}

// DashboardHandler serves dashboard figures, snapshots and the materials summary.
type DashboardHandler struct {
	dashboards Dashboards
	inventory  Inventory
	snapshots  SnapshotReader
	logger     *zap.Logger
}

// NewDashboardHandler constructs the handler. snapshots may be nil when no archive is configured.
func NewDashboardHandler(dashboards Dashboards, inventory Inventory, snapshots SnapshotReader, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{dashboards: dashboards, inventory: inventory, snapshots: snapshots, logger: logger}
}

// Summary answers the management dashboard for the from/to window.
func (h *DashboardHandler) Summary(c *gin.Context) {
	recent, ok := queryInt(c, "recent", dashboard.DefaultRecent)
	if !ok {
		return
	}
	sum, err := h.dashboards.Summarize(c.Request.Context(), dashboard.Filter{From: c.Query("from"), To: c.Query("to"), Recent: recent})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// Entry answers today's figures for data entry users.
func (h *DashboardHandler) Entry(c *gin.Context) {
	sum, err := h.dashboards.Entry(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// Snapshots lists the latest archived daily snapshots.
func (h *DashboardHandler) Snapshots(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot archive is not configured"})
		return
	}
	limit, ok := queryInt(c, "limit", defaultSnapshotLimit)
	if !ok {
		return
	}
	reports, err := h.snapshots.ListDailyReports(c.Request.Context(), int64(limit))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reports})
}

// Materials answers opening, added, used and closing stock per material.
func (h *DashboardHandler) Materials(c *gin.Context) {
	lines, err := h.inventory.InventorySummary(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": lines})
}
