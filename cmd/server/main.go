package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pxldrop/pxldrop/internal/app"
	"github.com/pxldrop/pxldrop/internal/config"
	"github.com/pxldrop/pxldrop/internal/logger"
	"github.com/pxldrop/pxldrop/internal/routes"
)

func main() {
	cfg := config.Load()

	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}

	err = application.Start(ctx)
	if err != nil {
		slog.Error("failed to start background processing", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: routes.SetupRoutes(application),
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv, "url", cfg.AppURL)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Block until an interrupt, then drain in order: HTTP first so no new
	// work arrives, background processing second, database last.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		slog.Error("failed to shut down http server", "error", err)
	}

	cancel()
	err = application.Stop()
	if err != nil {
		slog.Error("failed to stop app", "error", err)
	}
}
