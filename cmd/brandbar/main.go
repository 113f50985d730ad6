// Command brandbar stamps the brand footer bar and logo onto photos.
//
// Usage:
//
//	brandbar render -in photo.jpg [-out file|dir]
//	brandbar batch  -glob 'photos/**/*.jpg' [-out dir] [-workers n]
//	brandbar watch  -in photo.jpg -out preview.jpg
//	brandbar init-config [-out brandbar.toml]
//
// Style flags (-color, -opacity, -height-ratio, -padding, -white, -logo)
// override the config file for one invocation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/youruser/brandbar/assets"
	"github.com/youruser/brandbar/internal/config"
	imagepkg "github.com/youruser/brandbar/internal/image"
	"github.com/youruser/brandbar/internal/logger"
	"github.com/youruser/brandbar/internal/pipeline"
	"github.com/youruser/brandbar/internal/util"
	"github.com/youruser/brandbar/internal/watch"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "render":
		err = runRender(ctx, args)
	case "batch":
		err = runBatch(ctx, args)
	case "watch":
		err = runWatch(ctx, args)
	case "init-config":
		err = runInitConfig(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "brandbar: unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "brandbar:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: brandbar <command> [flags]

commands:
  render       composite one photo
  batch        composite every photo matching a glob
  watch        re-render a photo whenever it or the logo file changes
  init-config  write the default config file
`)
}

// ///////////////////////////////////////////////
// Shared flags
// ///////////////////////////////////////////////

type styleFlags struct {
	config      string
	logo        string
	color       string
	opacity     float64
	heightRatio float64
	padding     float64
	white       bool
	fs          *flag.FlagSet
}

func addStyleFlags(fs *flag.FlagSet) *styleFlags {
	def := imagepkg.DefaultSettings()
	f := &styleFlags{fs: fs}
	fs.StringVar(&f.config, "config", config.FileName, "path to the TOML config file")
	fs.StringVar(&f.logo, "logo", "", `logo path, URL, data URI or builtin:<id>; "none" disables`)
	fs.StringVar(&f.color, "color", def.FooterColor, "footer color (#rrggbb)")
	fs.Float64Var(&f.opacity, "opacity", def.FooterOpacity, "footer opacity [0,1]")
	fs.Float64Var(&f.heightRatio, "height-ratio", def.FooterHeightRatio, "footer height as a fraction of the photo (0,1)")
	fs.Float64Var(&f.padding, "padding", def.LogoPadding, "logo inset inside the footer [0,0.5)")
	fs.BoolVar(&f.white, "white", def.ForceLogoWhite, "recolor the logo to white")
	return f
}

// env is everything a command needs after flags are parsed.
type env struct {
	cfg    *config.Config
	log    *slog.Logger
	closer io.Closer
	pipe   *pipeline.Pipeline
	// base carries settings and logo; commands fill in Main.
	base pipeline.Request
}

// setup loads the config and applies only the style flags given explicitly.
func (f *styleFlags) setup() (*env, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "color":
			cfg.Footer.Color = f.color
		case "opacity":
			cfg.Footer.Opacity = f.opacity
		case "height-ratio":
			cfg.Footer.HeightRatio = f.heightRatio
		case "padding":
			cfg.Logo.Padding = f.padding
		case "white":
			cfg.Logo.ForceWhite = f.white
		case "logo":
			cfg.Logo.Source = f.logo
		}
	})
	if cfg.Logo.Source == "none" {
		cfg.Logo.Source = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, closer := logger.New(cfg.Log.File, logger.ParseLevel(cfg.Log.Level), cfg.Log.MaxSizeMB)
	loader := imagepkg.NewLoader(
		imagepkg.WithHTTPClient(util.NewHTTPClient(cfg.FetchTimeout(), cfg.Fetch.RetryMax, log)),
		imagepkg.WithBuiltins(assets.FS()),
		imagepkg.WithSVGHeight(cfg.Logo.SVGHeight),
		imagepkg.WithLogger(log),
	)
	return &env{
		cfg:    cfg,
		log:    log,
		closer: closer,
		pipe:   pipeline.New(loader, log, cfg.Output.FilenamePrefix),
		base:   pipeline.Request{Settings: cfg.Settings(), Logo: cfg.LogoSource()},
	}, nil
}

func (e *env) request(main imagepkg.Source) pipeline.Request {
	req := e.base
	req.Main = main
	return req
}

// ///////////////////////////////////////////////
// Commands
// ///////////////////////////////////////////////

func runRender(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	style := addStyleFlags(fs)
	in := fs.String("in", "", "input photo (path, URL or data URI)")
	out := fs.String("out", "", "output file or directory (default: config output.dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("render: -in is required")
	}
	e, err := style.setup()
	if err != nil {
		return err
	}
	defer e.closer.Close()

	src, err := imagepkg.ParseSource(*in)
	if err != nil {
		return err
	}
	res, err := e.pipe.Run(ctx, e.request(src))
	if err != nil {
		return err
	}

	dest := *out
	if dest == "" {
		dest = e.cfg.Output.Dir
	}
	if info, err := os.Stat(dest); (err == nil && info.IsDir()) || dest == e.cfg.Output.Dir {
		dest = filepath.Join(dest, res.Filename)
	}
	if err := writeResult(dest, res); err != nil {
		return err
	}
	fmt.Println(dest)
	return nil
}

func runBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	style := addStyleFlags(fs)
	pattern := fs.String("glob", "", "input pattern, ** matches directories")
	out := fs.String("out", "", "output directory (default: config output.dir)")
	workers := fs.Int("workers", runtime.NumCPU(), "photos processed in parallel")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pattern == "" {
		return errors.New("batch: -glob is required")
	}
	e, err := style.setup()
	if err != nil {
		return err
	}
	defer e.closer.Close()

	inputs, err := doublestar.FilepathGlob(*pattern, doublestar.WithFilesOnly())
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("batch: no files match %q", *pattern)
	}
	dir := *out
	if dir == "" {
		dir = e.cfg.Output.Dir
	}
	dests, err := outputPaths(*pattern, inputs, dir, e.cfg.Output.FilenamePrefix)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, *workers))
	failed := make([]error, len(inputs))
	for i, path := range inputs {
		i, path := i, path
		g.Go(func() error {
			res, err := e.pipe.Run(gctx, e.request(imagepkg.FromFile(path)))
			if err == nil {
				err = writeResult(dests[i], res)
			}
			if err != nil {
				e.log.Error("batch item failed", "input", path, "error", err)
				failed[i] = err
			}
			// Items fail independently; only cancellation stops the batch.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var errs []error
	for _, err := range failed {
		if err != nil {
			errs = append(errs, err)
		}
	}
	e.log.Info("batch finished", "total", len(inputs), "failed", len(errs))
	fmt.Printf("%d of %d photos written to %s\n", len(inputs)-len(errs), len(inputs), dir)
	return errors.Join(errs...)
}

// outputPaths maps each input to a file under dir, keeping the input's
// directory relative to the static prefix of pattern so same-named photos in
// different folders do not overwrite each other. Two inputs that still map to
// the same file, such as x.png and x.jpg, are an error.
func outputPaths(pattern string, inputs []string, dir, suffix string) ([]string, error) {
	base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
	base = filepath.FromSlash(base)
	dests := make([]string, len(inputs))
	seen := make(map[string]string, len(inputs))
	for i, path := range inputs {
		sub := "."
		if rel, err := filepath.Rel(base, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			sub = filepath.Dir(rel)
		}
		dest := filepath.Join(dir, sub, util.StemName(path, suffix))
		if prev, ok := seen[dest]; ok {
			return nil, fmt.Errorf("batch: %s and %s would both be written to %s", prev, path, dest)
		}
		seen[dest] = path
		dests[i] = dest
	}
	return dests, nil
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	style := addStyleFlags(fs)
	in := fs.String("in", "", "input photo file")
	out := fs.String("out", "", "output file, rewritten after every change")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return errors.New("watch: -in and -out are required")
	}
	e, err := style.setup()
	if err != nil {
		return err
	}
	defer e.closer.Close()

	paths := []string{*in}
	if e.base.Logo != nil && e.base.Logo.Kind == imagepkg.KindFile {
		paths = append(paths, e.base.Logo.Ref)
	}
	w, err := watch.New(paths...)
	if err != nil {
		return err
	}
	defer w.Close()

	pv := pipeline.NewPreviewer(e.pipe, e.cfg.Debounce(),
		pipeline.WithPreviewLogger(e.log),
		pipeline.OnResult(func(res *pipeline.Result) {
			if err := writeResult(*out, res); err != nil {
				e.log.Error("write preview", "path", *out, "error", err)
				return
			}
			fmt.Println("updated", *out)
		}),
	)
	defer pv.Close()

	req := e.request(imagepkg.FromFile(*in))
	pv.Submit(req)
	e.log.Info("watching", "paths", paths, "polling", w.Polling())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Events():
			pv.Submit(req)
		}
	}
}

func runInitConfig(args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ContinueOnError)
	out := fs.String("out", config.FileName, "destination path")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		return fmt.Errorf("%s exists; pass -force to overwrite", *out)
	}
	if err := config.DefaultConfig().Save(*out); err != nil {
		return err
	}
	fmt.Println(*out)
	return nil
}

func writeResult(path string, res *pipeline.Result) error {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return util.WriteFileAtomic(path, res.JPEG, 0o644)
}
