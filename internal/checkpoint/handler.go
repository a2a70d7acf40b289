package checkpoint

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"deck-backend/internal/shared/server/middleware"
	"deck-backend/internal/shared/server/respond"
)

// Handler exposes the checkpoint store to human reviewers.
type Handler struct {
	Store *Store
}

// NewHandler constructs a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes attaches checkpoint routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/checkpoints", h.listPending)
	rg.GET("/checkpoints/:id", h.get)
	rg.POST("/checkpoints/:id/approve", h.approve)
	rg.POST("/checkpoints/:id/reject", h.reject)
	rg.DELETE("/checkpoints", h.clear)
}

func (h *Handler) listPending(c *gin.Context) {
	items := h.Store.ListPending()
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	respond.OK(c, gin.H{"items": items})
}

// clear is an operator reset: every in-memory checkpoint is dropped and
// waiting runs are released with ErrNotFound.
func (h *Handler) clear(c *gin.Context) {
	dropped := h.Store.Clear()
	respond.OK(c, gin.H{"droppedPending": dropped})
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	if cp, ok := h.Store.Get(id); ok {
		respond.OK(c, cp)
		return
	}
	if j := h.Store.Journal(); j != nil {
		cp, err := j.Get(c.Request.Context(), id)
		switch {
		case err == nil:
			respond.OK(c, cp)
			return
		case !errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch checkpoint", nil)
			return
		}
	}
	respond.Error(c, http.StatusNotFound, "not_found", "checkpoint not found", nil)
}

func (h *Handler) approve(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.CheckpointIDKey, id)
	if _, ok := h.Store.Get(id); !ok {
		respond.Error(c, http.StatusNotFound, "not_found", "checkpoint not found", nil)
		return
	}
	cp, err := h.Store.Approve(id)
	if err != nil {
		h.resolveError(c, err)
		return
	}
	respond.OK(c, cp)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.CheckpointIDKey, id)
	var req rejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}
	if _, ok := h.Store.Get(id); !ok {
		respond.Error(c, http.StatusNotFound, "not_found", "checkpoint not found", nil)
		return
	}
	cp, err := h.Store.Reject(id, strings.TrimSpace(req.Reason))
	if err != nil {
		h.resolveError(c, err)
		return
	}
	respond.OK(c, cp)
}

func (h *Handler) resolveError(c *gin.Context, err error) {
	if errors.Is(err, ErrAlreadyResolved) {
		respond.Error(c, http.StatusConflict, "already_resolved", "checkpoint already resolved", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to resolve checkpoint", nil)
}
