package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/youruser/brandbar/assets"
	"github.com/youruser/brandbar/internal/config"
	imagepkg "github.com/youruser/brandbar/internal/image"
	"github.com/youruser/brandbar/internal/pipeline"
	"github.com/youruser/brandbar/internal/preview"
)

// Handlers serves the composite API.
type Handlers struct {
	cfg      *config.Config
	runner   pipeline.Runner
	loader   *imagepkg.Loader
	sessions *preview.Store
	log      *slog.Logger
}

func NewHandlers(cfg *config.Config, runner pipeline.Runner, loader *imagepkg.Loader, sessions *preview.Store, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{cfg: cfg, runner: runner, loader: loader, sessions: sessions, log: log}
}

// health
func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) settingsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.cfg.Settings())
}

func listLogosHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logos": assets.Logos()})
}

// logoHandler renders a catalog logo as PNG for the picker.
func (h *Handlers) logoHandler(c *gin.Context) {
	id := c.Param("id")
	if _, ok := assets.Lookup(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown logo"})
		return
	}
	bm, err := h.loader.Load(c.Request.Context(), imagepkg.FromBuiltin(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	png, err := imagepkg.EncodePNG(bm)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// compositeHandler composites one multipart upload ("image") and returns the
// JPEG. Form fields may override settings and choose the logo.
func (h *Handlers) compositeHandler(c *gin.Context) {
	req, err := h.requestFromForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image upload: " + err.Error()})
		return
	}
	req.Main = imagepkg.FromOpener(fh.Filename, func(context.Context) (io.ReadCloser, error) {
		return fh.Open()
	})

	res, err := h.runner.Run(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "processing failed", "detail": err.Error()})
		return
	}
	writeResult(c, res, c.Query("download") == "1")
}

func (h *Handlers) createSessionHandler(c *gin.Context) {
	s := h.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{"id": s.ID})
}

func (h *Handlers) sessionStatusHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	body := gin.H{"id": s.ID, "generation": s.Generation(), "ready": false}
	if err := s.LastError(); err != nil {
		body["error"] = err.Error()
	}
	if res := s.Latest(); res != nil {
		body["ready"] = true
		body["result"] = gin.H{
			"id":          res.ID,
			"width":       res.Width,
			"height":      res.Height,
			"filename":    res.Filename,
			"logoApplied": res.LogoApplied,
			"geometry":    res.Geometry,
			"createdAt":   res.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, body)
}

// sessionImageHandler stores a new photo for the session and schedules a
// debounced composite. It answers before the composite is ready.
func (h *Handlers) sessionImageHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	req, err := h.requestFromForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, name, err := readUpload(c, "image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Main = imagepkg.FromBytes(name, data)
	gen := s.Submit(data, http.DetectContentType(data), req)
	c.JSON(http.StatusAccepted, gin.H{"id": s.ID, "generation": gen})
}

// sessionPreviewHandler returns the latest composite, or the untouched photo
// while no composite has succeeded.
func (h *Handlers) sessionPreviewHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if res := s.Latest(); res != nil {
		writeResult(c, res, false)
		return
	}
	data, ctype := s.Main()
	if data == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no image uploaded"})
		return
	}
	c.Header("X-Composite", "false")
	c.Data(http.StatusOK, ctype, data)
}

func (h *Handlers) sessionDownloadHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	res := s.Latest()
	if res == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no composite available"})
		return
	}
	writeResult(c, res, true)
}

// sessionQRHandler returns a QR code linking to the session download.
func (h *Handlers) sessionQRHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	size := 256
	if v, err := strconv.Atoi(c.Query("size")); err == nil {
		size = v
	}
	link := h.baseURL(c) + "/api/sessions/" + s.ID + "/download"
	png, err := imagepkg.GenerateQRPNG(link, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handlers) deleteSessionHandler(c *gin.Context) {
	if !h.sessions.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

func (h *Handlers) session(c *gin.Context) (*preview.Session, bool) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
	}
	return s, ok
}

func (h *Handlers) baseURL(c *gin.Context) string {
	if h.cfg.Server.PublicURL != "" {
		return strings.TrimRight(h.cfg.Server.PublicURL, "/")
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

// requestFromForm builds a Request (without Main) from the configured
// defaults and any override fields present in the form.
func (h *Handlers) requestFromForm(c *gin.Context) (pipeline.Request, error) {
	s := h.cfg.Settings()
	if v, ok := c.GetPostForm("footer_color"); ok {
		s.FooterColor = v
	}
	floats := []struct {
		key string
		dst *float64
	}{
		{"footer_opacity", &s.FooterOpacity},
		{"footer_height_ratio", &s.FooterHeightRatio},
		{"logo_padding", &s.LogoPadding},
	}
	for _, f := range floats {
		v, ok := c.GetPostForm(f.key)
		if !ok {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = n
	}
	if v, ok := c.GetPostForm("force_logo_white"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("force_logo_white: %w", err)
		}
		s.ForceLogoWhite = b
	}
	if err := s.Validate(); err != nil {
		return pipeline.Request{}, err
	}

	req := pipeline.Request{Settings: s, Logo: h.cfg.LogoSource()}
	if v, ok := c.GetPostForm("logo"); ok {
		switch {
		case v == "none":
			req.Logo = nil
		case v != "":
			if _, known := assets.Lookup(v); !known {
				return pipeline.Request{}, fmt.Errorf("unknown logo %q", v)
			}
			src := imagepkg.FromBuiltin(v)
			req.Logo = &src
		}
	}
	return req, nil
}

func readUpload(c *gin.Context, field string) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("missing %s upload: %w", field, err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, fh.Filename, nil
}

func writeResult(c *gin.Context, res *pipeline.Result, attachment bool) {
	c.Header("X-Composite", "true")
	c.Header("X-Result-Id", res.ID)
	if attachment {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	}
	c.Data(http.StatusOK, "image/jpeg", res.JPEG)
}

// statusFor maps a failed run to an HTTP status: bad input images and
// unusable geometry are the client's, encoder faults are ours.
func statusFor(err error) int {
	var le *imagepkg.LoadError
	var ce *imagepkg.CompositeError
	if errors.As(err, &le) || errors.As(err, &ce) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
