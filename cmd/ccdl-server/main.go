// Command ccdl-server runs the campaign translator as an HTTP service with a
// persistent run log and optional schema hot-reload.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/epiforge/ccdl/internal/codec/campaign"
	"github.com/epiforge/ccdl/internal/config"
	"github.com/epiforge/ccdl/internal/registry"
	"github.com/epiforge/ccdl/internal/server"
	"github.com/epiforge/ccdl/internal/storage"
	"github.com/epiforge/ccdl/internal/storage/memory"
	"github.com/epiforge/ccdl/internal/storage/sqlite"
	"github.com/epiforge/ccdl/internal/telemetry"
	"github.com/epiforge/ccdl/internal/translate"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "YAML config file (optional)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdown, err := telemetry.Init("ccdl-server", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	reg := registry.Builtin()
	if cfg.Schema.Path != "" {
		if reg, err = registry.Load(cfg.Schema.Path); err != nil {
			log.Fatalf("Failed to load schema: %v", err)
		}
		logger.Info("registry loaded",
			slog.String("schema", cfg.Schema.Path),
			slog.Int("interventions", reg.Len()))
	}

	var eventMap map[string]string
	if cfg.Schema.Eventmap != "" {
		if eventMap, err = campaign.LoadEventMap(cfg.Schema.Eventmap); err != nil {
			log.Fatalf("Failed to load event map: %v", err)
		}
	}

	var runs storage.RunStore
	if cfg.Storage.Dbpath != "" {
		if runs, err = sqlite.New(cfg.Storage.Dbpath); err != nil {
			log.Fatalf("Failed to open run log: %v", err)
		}
	} else {
		runs = memory.New()
	}
	defer runs.Close()

	svc := translate.NewService(reg, eventMap, logger).WithWorkers(cfg.Translate.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Schema.Watch && cfg.Schema.Path != "" {
		if err := registry.Watch(ctx, cfg.Schema.Path, logger, svc.SetRegistry); err != nil {
			log.Fatalf("Failed to watch schema: %v", err)
		}
	}

	srv := server.New(cfg.Server.Port, svc, runs, cfg.Mode(), logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case <-sigCh:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server shutdown complete")
}
