package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/repository/remote"
	"github.com/starland/ledger/internal/service/records"
	"github.com/starland/ledger/internal/service/reporting"
	"github.com/starland/ledger/internal/service/users"
	"github.com/starland/ledger/pkg/clients/supabase"
)

type presenter interface {
	Present() any
}

func present(rec models.Record) any {
	if p, ok := rec.(presenter); ok {
		return p.Present()
	}
	return rec
}

func presentAll(recs []models.Record) []any {
	out := make([]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, present(rec))
	}
	return out
}

// fail maps service errors onto status codes. Unexpected errors are logged and hidden.
func fail(c *gin.Context, logger *zap.Logger, err error) {
	var vErr *models.ValidationError
	var apiErr *supabase.APIError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message, "field": vErr.Field})
	case errors.Is(err, records.ErrNotFound), errors.Is(err, users.ErrNotFound), errors.Is(err, reporting.ErrNoArchive):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, records.ErrImmutable):
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": err.Error()})
	case errors.Is(err, reporting.ErrUnknownFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "format"})
	case errors.Is(err, remote.ErrRejected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "the database rejected the record"})
	case errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError:
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Message, "code": apiErr.Code})
	default:
		logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}

func queryInt(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a non-negative integer", "field": key})
		return 0, false
	}
	return n, true
}
