package imagepkg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/singleflight"

	// Decoders beyond the stdlib set registered by imaging.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/youruser/brandbar/internal/util"
)

// MaxAssetBytes caps the encoded size of any single image source.
const MaxAssetBytes = 64 << 20

// DefaultSVGHeight is the raster height used for vector logos.
const DefaultSVGHeight = 512

// MaxPixels caps the decoded size of any single image. At 4 bytes per pixel
// this bounds one decode at about 200 MB.
const MaxPixels = 50_000_000

// Loader resolves Sources into Bitmaps. It keeps no decoded results between
// calls; concurrent loads of the same file, URL or builtin share one decode.
type Loader struct {
	client    *retryablehttp.Client
	builtins  fs.FS
	svgHeight int
	maxPixels int64
	log       *slog.Logger
	group     singleflight.Group
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the client used for URL sources.
func WithHTTPClient(c *retryablehttp.Client) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// WithBuiltins sets the filesystem holding builtin catalog assets.
func WithBuiltins(fsys fs.FS) LoaderOption {
	return func(l *Loader) { l.builtins = fsys }
}

// WithSVGHeight sets the raster height for SVG sources.
func WithSVGHeight(h int) LoaderOption {
	return func(l *Loader) {
		if h > 0 {
			l.svgHeight = h
		}
	}
}

// WithMaxPixels sets the largest width*height accepted from a source.
func WithMaxPixels(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxPixels = n
		}
	}
}

// WithLogger sets the logger for load diagnostics.
func WithLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// NewLoader builds a Loader. Without options it fetches URLs with a
// 10 second timeout and two retries.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{svgHeight: DefaultSVGHeight, maxPixels: MaxPixels, log: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	if l.client == nil {
		l.client = util.NewHTTPClient(10*time.Second, 2, nil)
	}
	return l
}

// Load reads and decodes src. Any failure is returned as a *LoadError.
//
// A shared decode runs detached from the caller that started it, so one
// caller giving up does not fail the others; each caller still stops
// waiting when its own ctx is done.
func (l *Loader) Load(ctx context.Context, src Source) (*Bitmap, error) {
	key := src.key()
	if key == "" {
		return l.load(ctx, src)
	}
	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		return l.load(shared, src)
	})
	select {
	case <-ctx.Done():
		return nil, &LoadError{Source: src.String(), Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			l.log.Debug("joined in-flight decode", "source", key)
		}
		return r.Val.(*Bitmap), nil
	}
}

func (l *Loader) load(ctx context.Context, src Source) (*Bitmap, error) {
	start := time.Now()
	rc, err := l.open(ctx, src)
	if err != nil {
		return nil, &LoadError{Source: src.String(), Err: err}
	}
	defer rc.Close()

	bm, err := l.decode(rc)
	if err != nil {
		return nil, &LoadError{Source: src.String(), Err: err}
	}
	l.log.Debug("image decoded", "source", src.String(), "width", bm.Width(), "height", bm.Height(),
		"elapsed", time.Since(start))
	return bm, nil
}

func (l *Loader) decode(r io.Reader) (*Bitmap, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxAssetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	if len(data) > MaxAssetBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxAssetBytes)
	}
	if isSVG(data) {
		return rasterizeSVG(data, l.svgHeight, l.maxPixels)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := checkPixels(cfg.Width, cfg.Height, l.maxPixels); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return NewBitmap(img)
}

// checkPixels rejects sizes that are empty or above limit pixels.
func checkPixels(w, h int, limit int64) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("image has invalid size %dx%d", w, h)
	}
	if int64(w) > limit || int64(h) > limit || int64(w)*int64(h) > limit {
		return fmt.Errorf("image size %dx%d exceeds %d pixels", w, h, limit)
	}
	return nil
}
