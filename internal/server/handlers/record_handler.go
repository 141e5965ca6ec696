package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/server/middleware"
	"github.com/starland/ledger/internal/service/records"
)

// RecordHandler exposes one record module over HTTP.
type RecordHandler struct {
	module *records.Module
	logger *zap.Logger
}

// NewRecordHandler constructs the handler for a module.
func NewRecordHandler(module *records.Module, logger *zap.Logger) *RecordHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordHandler{module: module, logger: logger.With(zap.String("kind", module.Kind().Name))}
}

// Create saves a new record. Records kept only locally answer 202 with a warning.
func (h *RecordHandler) Create(c *gin.Context) {
	rec := h.module.Kind().New()
	if err := c.ShouldBindJSON(rec); err != nil {
		badBody(c, err)
		return
	}

	res, err := h.module.Save(c.Request.Context(), middleware.SessionFrom(c).User, rec)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	if !res.Synced {
		c.JSON(http.StatusAccepted, gin.H{
			"data":     present(res.Record),
			"synced":   false,
			"warning":  res.Warning,
			"local_id": res.LocalID,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": present(res.Record), "synced": true})
}

// List returns records filtered by the from, to and limit query parameters.
func (h *RecordHandler) List(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	res, err := h.module.List(c.Request.Context(), records.Filter{From: c.Query("from"), To: c.Query("to"), Limit: limit})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": presentAll(res.Records), "source": res.Source, "count": len(res.Records)})
}

// Get returns one record.
func (h *RecordHandler) Get(c *gin.Context) {
	rec, err := h.module.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": present(rec)})
}

// Update replaces a record's editable fields.
func (h *RecordHandler) Update(c *gin.Context) {
	rec := h.module.Kind().New()
	if err := c.ShouldBindJSON(rec); err != nil {
		badBody(c, err)
		return
	}

	out, err := h.module.Update(c.Request.Context(), middleware.SessionFrom(c).User, c.Param("id"), rec)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": present(out)})
}

// Delete removes a record.
func (h *RecordHandler) Delete(c *gin.Context) {
	if err := h.module.Delete(c.Request.Context(), middleware.SessionFrom(c).User, c.Param("id")); err != nil {
		fail(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
