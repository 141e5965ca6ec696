package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/repository/local"
	"github.com/starland/ledger/internal/service/outbox"
	"github.com/starland/ledger/internal/service/users"
)

// Directory lists and changes accounts.
type Directory interface {
	Accounts
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id string, change users.Change) (models.User, error)
}

// Outbox flushes and reports the local outbox.
type Outbox interface {
	Flush(ctx context.Context) (outbox.Result, error)
	Status(ctx context.Context) (outbox.Status, error)
	Backlog(ctx context.Context) ([]local.Entry, error)
	Requeue(ctx context.Context, id string) error
}

// AdminHandler serves user administration and sync control.
type AdminHandler struct {
	directory Directory
	outbox    Outbox
	logger    *zap.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(directory Directory, box Outbox, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{directory: directory, outbox: box, logger: logger}
}

// Users lists accounts.
func (h *AdminHandler) Users(c *gin.Context) {
	list, err := h.directory.List(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// CreateUser registers an account on behalf of an administrator.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var reg users.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		badBody(c, err)
		return
	}
	createAccount(c, h.directory, reg, h.logger)
}

// UpdateUser changes role and/or status.
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var change users.Change
	if err := c.ShouldBindJSON(&change); err != nil {
		badBody(c, err)
		return
	}
	user, err := h.directory.Update(c.Request.Context(), c.Param("id"), change)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// Sync runs one outbox flush.
func (h *AdminHandler) Sync(c *gin.Context) {
	res, err := h.outbox.Flush(c.Request.Context())
	if errors.Is(err, outbox.ErrFlushInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Requeue returns a parked entry to the sync queue.
func (h *AdminHandler) Requeue(c *gin.Context) {
	id := c.Param("id")
	err := h.outbox.Requeue(c.Request.Context(), id)
	if errors.Is(err, outbox.ErrNotParked) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": local.StatusPending})
}

type backlogEntry struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	LastError  string `json:"last_error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// SyncStatus reports outbox counts and the unsynced entries.
func (h *AdminHandler) SyncStatus(c *gin.Context) {
	status, err := h.outbox.Status(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	entries, err := h.outbox.Backlog(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	backlog := make([]backlogEntry, 0, len(entries))
	for _, e := range entries {
		backlog = append(backlog, backlogEntry{
			ID:         e.ID,
			Collection: e.Collection,
			Status:     e.Status,
			Attempts:   e.Attempts,
			LastError:  e.LastError,
			CreatedAt:  e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "backlog": backlog})
}
