package runs

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"

	"deck-backend/internal/capability"
	"deck-backend/internal/shared/server/middleware"
	"deck-backend/internal/shared/server/respond"
	"deck-backend/internal/slides"
)

const maxDeckBytes = 10 << 20

// Handler exposes design pipeline runs over HTTP.
type Handler struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

// RegisterRoutes attaches run routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/runs", h.start)
	rg.GET("/runs", h.list)
	rg.GET("/runs/:id", h.get)
	rg.POST("/runs/:id/cancel", h.cancel)
	rg.GET("/runs/:id/report", h.report)
	rg.GET("/runs/:id/artifact", h.artifact)
}

func (h *Handler) start(c *gin.Context) {
	opts := StartOptions{
		Autonomy:  c.Query("autonomy"),
		RequestID: middleware.RequestIDFromContext(c),
	}
	var err error
	if opts.Validate, err = queryBool(c, "validate"); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "validate must be a boolean", nil)
		return
	}
	if opts.Refine, err = queryBool(c, "refine"); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "refine must be a boolean", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDeckBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "failed to read body", nil)
		return
	}
	if len(body) > maxDeckBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", "deck document too large", nil)
		return
	}
	deck, err := slides.CodecFor(c.ContentType()).Decode(body)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid deck document", []map[string]string{
			{"field": "body", "issue": err.Error()},
		})
		return
	}

	run, err := h.Service.Start(c.Request.Context(), deck, opts)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, capability.ErrUnavailable):
			respond.Error(c, http.StatusServiceUnavailable, "capability_unavailable", err.Error(), nil)
		case errors.Is(err, ErrClosed):
			respond.Error(c, http.StatusServiceUnavailable, "shutting_down", "server is shutting down", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start run", nil)
		}
		return
	}
	c.Set(middleware.RunIDKey, run.ID)
	c.Set(middleware.StatusTransitionKey, "->"+run.Status)
	respond.Accepted(c, path.Join(c.Request.URL.Path, run.ID), run)
}

func (h *Handler) list(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be between 1 and 200", nil)
			return
		}
		limit = n
	}
	items, err := h.Service.List(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list runs", nil)
		return
	}
	if items == nil {
		items = []Run{}
	}
	respond.OK(c, gin.H{"items": items})
}

func (h *Handler) get(c *gin.Context) {
	c.Set(middleware.RunIDKey, c.Param("id"))
	run, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.lookupError(c, err)
		return
	}
	respond.OK(c, run)
}

func (h *Handler) cancel(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	c.Set(middleware.RunIDKey, id)
	if err := h.Service.Cancel(ctx, id); err != nil {
		if errors.Is(err, ErrNotRunning) {
			respond.Error(c, http.StatusConflict, "not_running", "run is not in progress", nil)
			return
		}
		h.lookupError(c, err)
		return
	}
	respond.Accepted(c, path.Dir(c.Request.URL.Path), gin.H{"id": id, "canceling": true})
}

func (h *Handler) report(c *gin.Context) {
	html, err := h.Service.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNoReport) {
			respond.Error(c, http.StatusNotFound, "no_report", "run has no validation report", nil)
			return
		}
		h.lookupError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (h *Handler) artifact(c *gin.Context) {
	rc, contentType, err := h.Service.Artifact(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNoArtifact) || errors.Is(err, os.ErrNotExist) {
			respond.Error(c, http.StatusNotFound, "no_artifact", "run has no artifact", nil)
			return
		}
		h.lookupError(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

func (h *Handler) lookupError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch run", nil)
}

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
