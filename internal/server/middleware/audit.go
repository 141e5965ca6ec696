package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/service/audit"
)

// AuditRecorder stores audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

// SetAuditUser names the user of a request that carries no session, such as a login.
func SetAuditUser(c *gin.Context, email string) {
	c.Set(auditUserKey, email)
}

// Audit records audited API calls once they complete.
func Audit(recorder AuditRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		method, path := c.Request.Method, c.Request.URL.Path
		if !audit.Audited(method, path) {
			return
		}

		user := SessionFrom(c).User.Email
		if user == "" {
			user = c.GetString(auditUserKey)
		}
		if user == "" {
			user = "anonymous"
		}

		status := models.AuditSuccess
		if c.Writer.Status() >= http.StatusBadRequest {
			status = models.AuditFailed
		}

		recorder.Record(context.WithoutCancel(c.Request.Context()), models.AuditEntry{
			User:      user,
			Action:    audit.ActionFor(method, path),
			Module:    audit.ModuleFor(path),
			Details:   method + " " + path,
			IPAddress: c.ClientIP(),
			Status:    status,
		})
	}
}
