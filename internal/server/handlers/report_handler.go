package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/service/audit"
	"github.com/starland/ledger/internal/service/reporting"
)

// Reports renders and archives reports.
type Reports interface {
	Render(ctx context.Context, id string, format reporting.Format) (reporting.Document, error)
	Archive(ctx context.Context, id string, format reporting.Format) ([]string, error)
	AuditDocument(entries []models.AuditEntry) reporting.Document
}

// AuditTrail lists and clears audit entries.
type AuditTrail interface {
	List(ctx context.Context, q audit.Query) ([]models.AuditEntry, error)
	Clear(ctx context.Context) (int64, error)
}

// ReportHandler serves report downloads, archives and the audit trail.
type ReportHandler struct {
	reports Reports
	trail   AuditTrail
	logger  *zap.Logger
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports Reports, trail AuditTrail, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reports: reports, trail: trail, logger: logger}
}

// Catalog lists the available reports.
func (h *ReportHandler) Catalog(c *gin.Context) {
	type entry struct {
		ID      string   `json:"id"`
		Title   string   `json:"title"`
		Headers []string `json:"headers"`
	}
	var out []entry
	for _, def := range reporting.Catalog() {
		out = append(out, entry{ID: def.ID, Title: def.Title, Headers: def.Headers})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// Export downloads report :id in the requested format.
func (h *ReportHandler) Export(c *gin.Context) {
	format, err := reporting.ParseFormat(c.Query("format"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	doc, err := h.reports.Render(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	attach(c, doc)
}

// Archive uploads report :id to every configured archive.
func (h *ReportHandler) Archive(c *gin.Context) {
	format, err := reporting.ParseFormat(c.Query("format"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	locations, err := h.reports.Archive(c.Request.Context(), c.Param("id"), format)
	if err != nil && len(locations) == 0 {
		fail(c, h.logger, err)
		return
	}
	body := gin.H{"locations": locations}
	if err != nil {
		h.logger.Warn("report partially archived", zap.Error(err))
		body["warning"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (h *ReportHandler) auditQuery(c *gin.Context) (audit.Query, bool) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return audit.Query{}, false
	}
	return audit.Query{
		From:   c.Query("from"),
		To:     c.Query("to"),
		User:   c.Query("user"),
		Action: c.Query("action"),
		Limit:  limit,
	}, true
}

// AuditList returns audit entries matching the query filters.
func (h *ReportHandler) AuditList(c *gin.Context) {
	q, ok := h.auditQuery(c)
	if !ok {
		return
	}
	entries, err := h.trail.List(c.Request.Context(), q)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
}

// AuditExport downloads matching audit entries as CSV.
func (h *ReportHandler) AuditExport(c *gin.Context) {
	q, ok := h.auditQuery(c)
	if !ok {
		return
	}
	entries, err := h.trail.List(c.Request.Context(), q)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	attach(c, h.reports.AuditDocument(entries))
}

// AuditClear drops the audit trail.
func (h *ReportHandler) AuditClear(c *gin.Context) {
	n, err := h.trail.Clear(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

func attach(c *gin.Context, doc reporting.Document) {
	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}
