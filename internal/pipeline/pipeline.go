// Package pipeline runs load, composite and encode as one unit and layers
// debounced, stale-safe previews on top.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	imagepkg "github.com/youruser/brandbar/internal/image"
	"github.com/youruser/brandbar/internal/logger"
	"github.com/youruser/brandbar/internal/util"
)

// Request is one (main, logo, settings) tuple.
type Request struct {
	Main imagepkg.Source
	// Logo is optional; a logo that fails to load is skipped.
	Logo     *imagepkg.Source
	Settings imagepkg.Settings
}

// Result is a finished composite.
type Result struct {
	ID          string
	JPEG        []byte
	Width       int
	Height      int
	Geometry    imagepkg.Geometry
	LogoApplied bool
	Filename    string
	CreatedAt   time.Time
}

// Runner executes a Request.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Pipeline is the synchronous Loader -> Compositor -> Encoder chain.
type Pipeline struct {
	loader *imagepkg.Loader
	log    *slog.Logger
	prefix string
	now    func() time.Time
}

// New returns a Pipeline naming its exports "<prefix>-<millis>.jpg".
func New(loader *imagepkg.Loader, log *slog.Logger, prefix string) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{loader: loader, log: log, prefix: prefix, now: time.Now}
}

// Run processes req. Errors from the main image, the compositor or the
// encoder abort the run and are returned wrapped, preserving the stage error
// type for errors.As.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	main, err := p.loader.Load(ctx, req.Main)
	if err != nil {
		p.log.Error("main image load failed", "source", req.Main.String(), "error", err)
		return nil, fmt.Errorf("processing failed: %w", err)
	}

	var logo *imagepkg.Bitmap
	if req.Logo != nil {
		logo, err = p.loader.Load(ctx, *req.Logo)
		if err != nil {
			p.log.Warn("logo unavailable, compositing footer only", "source", req.Logo.String(), "error", err)
			logo = nil
		}
	}

	out, geom, err := imagepkg.Composite(main, logo, req.Settings)
	if err != nil {
		p.log.Error("composite failed", "error", err)
		return nil, fmt.Errorf("processing failed: %w", err)
	}
	logger.Trace(p.log, "composited", "width", out.Width(), "height", out.Height(), "elapsed", time.Since(start))

	data, err := imagepkg.Encode(out)
	if err != nil {
		p.log.Error("encode failed", "error", err)
		return nil, fmt.Errorf("processing failed: %w", err)
	}

	now := p.now()
	res := &Result{
		ID:          uuid.NewString(),
		JPEG:        data,
		Width:       out.Width(),
		Height:      out.Height(),
		Geometry:    geom,
		LogoApplied: geom.Logo != nil,
		Filename:    util.ExportName(p.prefix, now),
		CreatedAt:   now,
	}
	p.log.Info("composite ready", "id", res.ID, "width", res.Width, "height", res.Height,
		"logo", res.LogoApplied, "bytes", len(data), "elapsed", time.Since(start))
	return res, nil
}
