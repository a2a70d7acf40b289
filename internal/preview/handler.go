package preview

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"deck-backend/internal/shared/server/respond"
	"deck-backend/internal/shared/storage/object"
	"deck-backend/internal/shared/telemetry"
	"deck-backend/internal/shared/util"
	"deck-backend/internal/slides"
)

const maxDeckBytes = 10 << 20

// Handler exposes deck previews over HTTP.
type Handler struct {
	Renderer *Renderer
	Store    object.ObjectStore
}

// NewHandler constructs a Handler.
func NewHandler(renderer *Renderer, store object.ObjectStore) *Handler {
	return &Handler{Renderer: renderer, Store: store}
}

// RegisterRoutes attaches preview routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/previews", h.createPreview)
	rg.GET("/previews/:digest/:file", h.getFrame)
}

type frameResponse struct {
	SlideIndex int    `json:"slideIndex"`
	Key        string `json:"key"`
	SizeBytes  int64  `json:"sizeBytes"`
}

// FrameKey is the storage key for one rendered slide of a deck.
func FrameKey(digest string, slideIndex int) string {
	return fmt.Sprintf("previews/%s/slide-%03d.png", digest, slideIndex)
}

func (h *Handler) createPreview(c *gin.Context) {
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

	ctx := c.Request.Context()
	frames, err := h.Renderer.RenderDeck(ctx, deck)
	if err != nil {
		if errors.Is(err, ErrInvalidPage) {
			respond.Error(c, http.StatusUnprocessableEntity, "render_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to render deck", nil)
		return
	}

	digest := util.ContentDigest(body)
	out := make([]frameResponse, 0, len(frames))
	for _, f := range frames {
		key := FrameKey(digest, f.SlideIndex)
		n, err := h.Store.Put(ctx, key, "image/png", bytes.NewReader(f.PNG))
		if err != nil {
			telemetry.Error("preview.store.failed", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store preview", nil)
			return
		}
		out = append(out, frameResponse{SlideIndex: f.SlideIndex, Key: key, SizeBytes: n})
	}

	telemetry.Info("preview.rendered", map[string]any{
		"digest":      digest,
		"slide_count": len(frames),
		"request_id":  c.GetString("requestId"),
	})
	respond.Created(c, gin.H{
		"digest":     digest,
		"slideCount": deck.SlideCount(),
		"frames":     out,
	})
}

func (h *Handler) getFrame(c *gin.Context) {
	key := "previews/" + c.Param("digest") + "/" + c.Param("file")
	rc, err := h.Store.Open(c.Request.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, object.ErrInvalidKey):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid preview key", nil)
		case errors.Is(err, os.ErrNotExist):
			respond.Error(c, http.StatusNotFound, "not_found", "preview not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open preview", nil)
		}
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "image/png", rc, nil)
}
