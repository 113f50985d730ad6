package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/youruser/brandbar/assets"
	"github.com/youruser/brandbar/internal/config"
	imagepkg "github.com/youruser/brandbar/internal/image"
	"github.com/youruser/brandbar/internal/pipeline"
	"github.com/youruser/brandbar/internal/preview"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*gin.Engine, *preview.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	cfg.Server.PublicURL = "https://brand.example.com/"

	loader := imagepkg.NewLoader(imagepkg.WithBuiltins(assets.FS()), imagepkg.WithSVGHeight(64), imagepkg.WithLogger(log))
	pipe := pipeline.New(loader, log, cfg.Output.FilenamePrefix)
	store := preview.NewStore(cfg.SessionTTL(), func() *pipeline.Previewer {
		return pipeline.NewPreviewer(pipe, 5*time.Millisecond, pipeline.WithPreviewLogger(log))
	}, log)
	t.Cleanup(store.Close)

	r := gin.New()
	r.Use(RequestLogger(log))
	RegisterRoutes(r, NewHandlers(cfg, pipe, loader, store, log))
	return r, store
}

func photoPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(file)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func do(r http.Handler, method, path string, body io.Reader, ctype string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthAndSettings(t *testing.T) {
	r, _ := newTestServer(t)

	if w := do(r, http.MethodGet, "/api/health", nil, ""); w.Code != http.StatusOK {
		t.Errorf("health = %d", w.Code)
	}

	w := do(r, http.MethodGet, "/api/settings", nil, "")
	var s imagepkg.Settings
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if s != imagepkg.DefaultSettings() {
		t.Errorf("settings = %+v", s)
	}
}

func TestLogos(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(r, http.MethodGet, "/api/logos", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), assets.DefaultLogoID) {
		t.Errorf("logos = %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/logos/oright-standard", nil, "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("logo = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	cfg, err := png.DecodeConfig(w.Body)
	if err != nil || cfg.Height != 64 {
		t.Errorf("logo png = %+v, %v", cfg, err)
	}

	if w := do(r, http.MethodGet, "/api/logos/unknown", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown logo = %d", w.Code)
	}
}

func TestComposite(t *testing.T) {
	r, _ := newTestServer(t)
	body, ctype := multipartBody(t, map[string]string{"logo": "oright-pro-horizontal"}, photoPNG(t, 320, 200))

	w := do(r, http.MethodPost, "/api/composite?download=1", body, ctype)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Type") != "image/jpeg" || w.Header().Get("X-Composite") != "true" {
		t.Errorf("headers = %v", w.Header())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, `attachment; filename="oright-pro-`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	cfg, format, err := image.DecodeConfig(w.Body)
	if err != nil || format != "jpeg" || cfg.Width != 320 || cfg.Height != 200 {
		t.Errorf("output = %v %q %dx%d", err, format, cfg.Width, cfg.Height)
	}
}

func TestComposite_BadRequests(t *testing.T) {
	r, _ := newTestServer(t)
	photo := photoPNG(t, 40, 30)
	tests := []struct {
		name   string
		fields map[string]string
		file   []byte
		want   int
	}{
		{"missing upload", nil, nil, http.StatusBadRequest},
		{"opacity out of range", map[string]string{"footer_opacity": "2"}, photo, http.StatusBadRequest},
		{"opacity not a number", map[string]string{"footer_opacity": "lots"}, photo, http.StatusBadRequest},
		{"bad color", map[string]string{"footer_color": "#zzz"}, photo, http.StatusBadRequest},
		{"unknown logo", map[string]string{"logo": "acme"}, photo, http.StatusBadRequest},
		{"bad white flag", map[string]string{"force_logo_white": "maybe"}, photo, http.StatusBadRequest},
		{"undecodable image", nil, []byte("not an image"), http.StatusUnprocessableEntity},
		{"oversized svg", nil, []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 1000000000000 1"/>`), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ctype := multipartBody(t, tt.fields, tt.file)
			w := do(r, http.MethodPost, "/api/composite", body, ctype)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSessionFlow(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(r, http.MethodPost, "/api/sessions", nil, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	id, _ := decodeJSON(t, w)["id"].(string)
	base := "/api/sessions/" + id

	if w := do(r, http.MethodGet, base+"/preview", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("preview before upload = %d", w.Code)
	}
	if w := do(r, http.MethodGet, base+"/download", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("download before upload = %d", w.Code)
	}

	body, ctype := multipartBody(t, map[string]string{"logo": "none"}, photoPNG(t, 64, 48))
	w = do(r, http.MethodPut, base+"/image", body, ctype)
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload = %d: %s", w.Code, w.Body.String())
	}
	if gen := decodeJSON(t, w)["generation"]; gen != float64(1) {
		t.Errorf("generation = %v, want 1", gen)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		st := decodeJSON(t, do(r, http.MethodGet, base, nil, ""))
		if st["ready"] == true {
			res := st["result"].(map[string]any)
			if res["logoApplied"] != false || res["width"] != float64(64) {
				t.Errorf("result = %v", res)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("composite never became ready: %v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}

	w = do(r, http.MethodGet, base+"/preview", nil, "")
	if w.Code != http.StatusOK || w.Header().Get("X-Composite") != "true" {
		t.Errorf("preview = %d %v", w.Code, w.Header())
	}
	w = do(r, http.MethodGet, base+"/download", nil, "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment") {
		t.Errorf("download = %d %v", w.Code, w.Header())
	}

	w = do(r, http.MethodGet, base+"/qr?size=128", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("qr = %d", w.Code)
	}
	if cfg, err := png.DecodeConfig(w.Body); err != nil || cfg.Width != 128 {
		t.Errorf("qr png = %+v, %v", cfg, err)
	}

	if w := do(r, http.MethodDelete, base, nil, ""); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
	if w := do(r, http.MethodGet, base, nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d", w.Code)
	}
}

func TestSessionPreviewFallsBackToPhoto(t *testing.T) {
	r, _ := newTestServer(t)
	id, _ := decodeJSON(t, do(r, http.MethodPost, "/api/sessions", nil, ""))["id"].(string)
	base := "/api/sessions/" + id

	garbage := []byte("not an image at all")
	body, ctype := multipartBody(t, nil, garbage)
	if w := do(r, http.MethodPut, base+"/image", body, ctype); w.Code != http.StatusAccepted {
		t.Fatalf("upload = %d", w.Code)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		st := decodeJSON(t, do(r, http.MethodGet, base, nil, ""))
		if _, failed := st["error"]; failed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never failed: %v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}

	w := do(r, http.MethodGet, base+"/preview", nil, "")
	if w.Code != http.StatusOK || w.Header().Get("X-Composite") != "false" {
		t.Fatalf("preview = %d %v", w.Code, w.Header())
	}
	if !bytes.Equal(w.Body.Bytes(), garbage) {
		t.Error("fallback preview is not the uploaded photo")
	}
}

func TestUnknownSession(t *testing.T) {
	r, _ := newTestServer(t)
	for _, path := range []string{"/api/sessions/nope", "/api/sessions/nope/preview", "/api/sessions/nope/qr"} {
		if w := do(r, http.MethodGet, path, nil, ""); w.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d", path, w.Code)
		}
	}
	if w := do(r, http.MethodDelete, "/api/sessions/nope", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("DELETE = %d", w.Code)
	}
}
