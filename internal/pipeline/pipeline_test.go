package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	imagepkg "github.com/youruser/brandbar/internal/image"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngOf(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func newTestPipeline() *Pipeline {
	p := New(imagepkg.NewLoader(imagepkg.WithLogger(discardLogger())), discardLogger(), "oright-pro")
	p.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return p
}

func TestRun_WithLogo(t *testing.T) {
	logo := imagepkg.FromBytes("logo.png", pngOf(t, 600, 250, color.NRGBA{R: 255, A: 255}))
	req := Request{
		Main:     imagepkg.FromBytes("photo.png", pngOf(t, 1000, 800, color.NRGBA{R: 90, G: 90, B: 90, A: 255})),
		Logo:     &logo,
		Settings: imagepkg.DefaultSettings(),
	}
	res, err := newTestPipeline().Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Width != 1000 || res.Height != 800 {
		t.Errorf("size = %dx%d, want 1000x800", res.Width, res.Height)
	}
	if !res.LogoApplied || res.Geometry.Logo == nil {
		t.Error("logo not applied")
	}
	if res.Filename != "oright-pro-1700000000123.jpg" {
		t.Errorf("Filename = %q", res.Filename)
	}
	if res.ID == "" {
		t.Error("empty result id")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.JPEG))
	if err != nil || format != "jpeg" || cfg.Width != 1000 || cfg.Height != 800 {
		t.Errorf("JPEG = %v %q %dx%d", err, format, cfg.Width, cfg.Height)
	}
}

func TestRun_LogoFailureIsNotFatal(t *testing.T) {
	bad := imagepkg.FromBytes("logo.png", []byte("not an image"))
	req := Request{
		Main:     imagepkg.FromBytes("photo.png", pngOf(t, 200, 100, color.NRGBA{G: 200, A: 255})),
		Logo:     &bad,
		Settings: imagepkg.DefaultSettings(),
	}
	res, err := newTestPipeline().Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.LogoApplied || res.Geometry.Logo != nil {
		t.Error("logo reported as applied")
	}
	if len(res.JPEG) == 0 {
		t.Error("no output bytes")
	}
}

func TestRun_MainFailureIsFatal(t *testing.T) {
	req := Request{
		Main:     imagepkg.FromBytes("photo.png", []byte("garbage")),
		Settings: imagepkg.DefaultSettings(),
	}
	res, err := newTestPipeline().Run(context.Background(), req)
	if res != nil {
		t.Error("result returned alongside error")
	}
	var le *imagepkg.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *LoadError", err)
	}
}

func TestRun_CompositeFailure(t *testing.T) {
	s := imagepkg.DefaultSettings()
	s.FooterColor = "not-a-color"
	req := Request{
		Main:     imagepkg.FromBytes("photo.png", pngOf(t, 20, 20, color.NRGBA{A: 255})),
		Settings: s,
	}
	_, err := newTestPipeline().Run(context.Background(), req)
	var ce *imagepkg.CompositeError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CompositeError", err)
	}
}
