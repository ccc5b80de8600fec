// Command vrc-embed serves dynamically rendered profile badges.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/knuxify/vrc-embed/internal/config"
	"github.com/knuxify/vrc-embed/internal/fontcache"
	"github.com/knuxify/vrc-embed/internal/health"
	"github.com/knuxify/vrc-embed/internal/imagecache"
	"github.com/knuxify/vrc-embed/internal/observe"
	"github.com/knuxify/vrc-embed/internal/profile"
	"github.com/knuxify/vrc-embed/internal/render"
	"github.com/knuxify/vrc-embed/internal/rendercache"
	"github.com/knuxify/vrc-embed/internal/server"
)

const version = "0.0.1"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vrc-embed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", getenvDefault("VRC_EMBED_CONFIG", "config.yaml"), "path to config.yaml")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName:    "vrc-embed",
		Version:        version,
		LogLevel:       cfg.Observe.LogLevel,
		MetricsEnabled: cfg.Observe.Metrics,
		TracingEnabled: cfg.Observe.Tracing,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()
	log := obs.Logger()

	renders, err := rendercache.NewStore(cfg.Cache.RendersDir)
	if err != nil {
		return err
	}

	images, err := imagecache.New(imagecache.Config{
		Dir:       cfg.Cache.ImagesDir,
		IdleTTL:   cfg.Cache.ImageIdleTTL.Std(),
		UserAgent: fmt.Sprintf("vrc-embed/%s (https://github.com/knuxify/vrc-embed)", version),
	})
	if err != nil {
		return err
	}
	defer images.Close()

	store, err := profile.OpenStore(cfg.Upstream.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := profile.NewClient(profile.Config{
		BaseURL:    cfg.Upstream.BaseURL,
		Username:   cfg.Upstream.Username,
		Password:   cfg.Upstream.Password,
		TOTPSecret: cfg.Upstream.TOTPSecret,
		UserAgent:  cfg.Upstream.UserAgent,
		CacheTTL:   cfg.Upstream.CacheTTL.Std(),
	}, store, log)
	if err != nil {
		return err
	}

	fonts := fontcache.New()
	if cfg.Render.FontsDir != "" {
		if err := loadFonts(fonts, cfg.Render.FontsDir); err != nil {
			return err
		}
	}

	renderer, err := render.NewRenderer(render.RendererConfig{
		Store:      renders,
		Inliner:    &render.Inliner{Images: images, Log: log, Metrics: obs.Metrics()},
		Fonts:      fonts,
		Rasterizer: render.NewExecRasterizer(cfg.Render.RasterizerCommand, cfg.Render.MaxConcurrent),
		Logger:     log,
		Metrics:    obs.Metrics(),
	})
	if err != nil {
		return err
	}

	checks := health.NewAggregator(5 * time.Second)
	checks.Register(health.DirWritable("render_cache", renders.Dir()))
	checks.Register(health.DirWritable("image_cache", images.Dir()))
	checks.Register(health.Ping("profile_store", store))

	handler, err := server.New(server.Config{
		Users:    users,
		Renderer: renderer,
		Health:   checks,
		Metrics:  obs.MetricsHandler(),
		Logger:   log,
	})
	if err != nil {
		return err
	}

	// Stale image payloads are evicted on a fixed cadence; this is the only
	// place Prune is called.
	go func() {
		ticker := time.NewTicker(cfg.Cache.PruneInterval.Std())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := images.Prune()
				if m := obs.Metrics(); m != nil {
					m.RecordPrune(ctx, removed)
				}
				if removed > 0 {
					log.Info(ctx, "pruned idle images", observe.F("removed", removed))
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", observe.F("addr", cfg.Server.Listen), observe.F("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadConfig falls back to built-in defaults when the default config file is
// absent; an explicitly named file must exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if os.IsNotExist(errors.Unwrap(err)) && path == "config.yaml" {
		return config.Default(), nil
	}
	return nil, err
}

// loadFonts registers every TrueType file in dir under its base name.
func loadFonts(fonts *fontcache.Cache, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read fonts dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".ttf" && ext != ".otf" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if err := fonts.RegisterFile(name, filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("register font %s: %w", e.Name(), err)
		}
	}
	return nil
}

func getenvDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
