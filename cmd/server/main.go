package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/youruser/brandbar/assets"
	"github.com/youruser/brandbar/internal/api"
	"github.com/youruser/brandbar/internal/config"
	imagepkg "github.com/youruser/brandbar/internal/image"
	"github.com/youruser/brandbar/internal/logger"
	"github.com/youruser/brandbar/internal/pipeline"
	"github.com/youruser/brandbar/internal/preview"
	"github.com/youruser/brandbar/internal/util"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred closes happen before exit.
func run() int {
	cfgPath := flag.String("config", envOr("BRANDBAR_CONFIG", config.FileName), "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		stderr, closer := logger.New("", logger.LevelInfo, 0)
		defer closer.Close()
		stderr.Error("cannot load config", "path", *cfgPath, "error", err)
		return 1
	}
	log, closer := logger.New(cfg.Log.File, logger.ParseLevel(cfg.Log.Level), cfg.Log.MaxSizeMB)
	defer closer.Close()

	loader := imagepkg.NewLoader(
		imagepkg.WithHTTPClient(util.NewHTTPClient(cfg.FetchTimeout(), cfg.Fetch.RetryMax, log)),
		imagepkg.WithBuiltins(assets.FS()),
		imagepkg.WithSVGHeight(cfg.Logo.SVGHeight),
		imagepkg.WithLogger(log),
	)
	pipe := pipeline.New(loader, log, cfg.Output.FilenamePrefix)
	sessions := preview.NewStore(cfg.SessionTTL(), func() *pipeline.Previewer {
		return pipeline.NewPreviewer(pipe, cfg.Debounce(), pipeline.WithPreviewLogger(log))
	}, log)
	defer sessions.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sessions.Run(ctx, time.Minute)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(log))
	api.RegisterRoutes(r, api.NewHandlers(cfg, pipe, loader, sessions, log))

	addr := cfg.Server.Addr
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	shutdown := make(chan struct{})
	go func() {
		defer close(shutdown)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()

	log.Info("starting server", "addr", addr, "config", *cfgPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "error", err)
		return 1
	}
	<-shutdown
	log.Info("server stopped")
	return 0
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
