package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docanalysis-backend/internal/bootstrap"
	"docanalysis-backend/internal/shared/config"
	"docanalysis-backend/internal/shared/server"
	"docanalysis-backend/internal/shared/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	closeLogs, err := telemetry.Setup(telemetry.Options{Level: cfg.LogLevel, FilePath: cfg.LogFile})
	if err != nil {
		fatal("telemetry setup", err)
	}
	defer closeLogs()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWithContext(ctx, cfg)
	if err != nil {
		fatal("bootstrap build", err)
	}

	addr := server.Addr(cfg.Port)
	srv := &http.Server{Addr: addr, Handler: app.Router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			telemetry.Error("api.shutdown_failed", map[string]any{"error": err})
		}
	}()

	telemetry.Info("api.started", map[string]any{"addr": addr, "env": cfg.Env})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal("listen", err)
	}
	if app.DB != nil {
		_ = app.DB.Close()
	}
	telemetry.Info("api.stopped", nil)
}

func fatal(step string, err error) {
	telemetry.Error("api.fatal", map[string]any{"step": step, "error": err})
	os.Exit(1)
}
