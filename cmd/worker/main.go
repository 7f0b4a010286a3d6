// Command worker runs the background jobs without serving the application, for deployments that
// keep more than one API replica and set worker.stale_uploads_enabled=false on them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	_ "time/tzdata"

	"github.com/jwalitptl/consultorio/internal/app"
	"github.com/jwalitptl/consultorio/internal/config"
	"github.com/jwalitptl/consultorio/pkg/logger"
)

func setupHealthCheck(a *app.App, port int) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func workerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

func main() {
	configFile := flag.String("config", "", "path to config.yaml")
	port := flag.Int("port", 8081, "health and metrics port")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	// This process exists to sweep; the flag only governs the API.
	cfg.Worker.StaleUploadsEnabled = true

	l := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}).
		With().Str("worker_id", workerID()).Logger()
	logger.Install(l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to start worker")
	}
	defer a.Close()

	srv := setupHealthCheck(a, *port)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error().Err(err).Msg("health check server failed")
			stop()
		}
	}()

	l.Info().Msg("worker started")
	a.StaleUploadsWorker().Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("health check server forced to shutdown")
	}
	l.Info().Msg("worker shutting down")
}
