package preview

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	local "deck-backend/internal/shared/storage/object/local"
)

func setupPreviewRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewRenderer(Options{DPI: 30}, testFonts), local.New(t.TempDir()))
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

const previewDeckJSON = `{
  "width": 9144000,
  "height": 6858000,
  "slides": [
    {"shapes": [{"name": "Title 1", "kind": "text", "left": 914400, "top": 914400, "width": 4572000, "height": 914400, "text": "Hello"}]},
    {"shapes": []}
  ]
}`

func TestCreatePreviewStoresFrames(t *testing.T) {
	router := setupPreviewRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/previews", strings.NewReader(previewDeckJSON))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Digest     string          `json:"digest"`
		SlideCount int             `json:"slideCount"`
		Frames     []frameResponse `json:"frames"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.SlideCount != 2 || len(body.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %+v", body)
	}
	for i, f := range body.Frames {
		if f.SlideIndex != i {
			t.Fatalf("frame %d has slide index %d", i, f.SlideIndex)
		}
		if f.Key != FrameKey(body.Digest, i) {
			t.Fatalf("unexpected key %q", f.Key)
		}
		if f.SizeBytes <= 0 {
			t.Fatalf("expected stored bytes for frame %d", i)
		}
	}

	get := httptest.NewRequest(http.MethodGet, "/api/v1/"+body.Frames[1].Key, nil)
	getResp := httptest.NewRecorder()
	router.ServeHTTP(getResp, get)
	if getResp.Code != http.StatusOK {
		t.Fatalf("expected status 200 fetching frame, got %d", getResp.Code)
	}
	if !bytes.HasPrefix(getResp.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("expected png bytes")
	}
}

func TestCreatePreviewYAML(t *testing.T) {
	router := setupPreviewRouter(t)
	yamlDeck := "width: 9144000\nheight: 6858000\nslides:\n  - shapes: []\n"

	req := httptest.NewRequest(http.MethodPost, "/api/v1/previews", strings.NewReader(yamlDeck))
	req.Header.Set("Content-Type", "application/yaml")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCreatePreviewReaderListing(t *testing.T) {
	router := setupPreviewRouter(t)
	listing := `{"width":9144000,"height":5120640,"slides":[{"shapes":[
		{"shapeType":"PICTURE","name":"Banner","left":0,"top":0,"width":1125899906842624,"height":914400},
		{"shapeType":"TEXT_BOX","name":"Caption","text":"Hi","left":914400,"top":1828800,"width":2743200,"height":457200}
	]}]}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/previews", strings.NewReader(listing))
	req.Header.Set("Content-Type", "application/vnd.deck-reader+json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Frames []frameResponse `json:"frames"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(body.Frames))
	}
}

func TestCreatePreviewRejectsBadDeck(t *testing.T) {
	router := setupPreviewRouter(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed", body: `{"width":`, want: http.StatusBadRequest},
		{name: "zero page", body: `{"width":0,"height":0,"slides":[]}`, want: http.StatusBadRequest},
		{name: "unknown kind", body: `{"width":9144000,"height":6858000,"slides":[{"shapes":[{"name":"x","kind":"hologram"}]}]}`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/previews", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, resp.Code)
			}
		})
	}
}

func TestGetFrameNotFound(t *testing.T) {
	router := setupPreviewRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/previews/deadbeef/slide-000.png", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}
