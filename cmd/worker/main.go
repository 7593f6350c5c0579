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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bryanwahyu/brandsentry/internal/app"
	"github.com/bryanwahyu/brandsentry/internal/config"
	"github.com/bryanwahyu/brandsentry/internal/logging"
	"github.com/bryanwahyu/brandsentry/internal/middleware"
	"github.com/bryanwahyu/brandsentry/internal/telemetry"
)

var version = "dev"

func main() {
	metricsAddr := flag.String("metrics-addr", ":9091", "listen address for /metrics and /health; empty disables")
	flag.Parse()

	log := logging.Init("brandsentry-worker")

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Error("config load error", "error", err)
		os.Exit(1)
	}
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("memory driver: this worker only sees jobs enqueued in its own process")
	}

	telemetry.InitMetrics()
	shutdownTracer, err := telemetry.InitTracer("brandsentry-worker", version)
	if err != nil {
		log.Error("tracer init error", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	var srv *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/health", middleware.HealthHandler(application.Health))
		srv = &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	if err := application.RunWorker(ctx, cfg.Server.ShutdownTimeout); err != nil {
		log.Error("worker stopped", "error", err)
	}
	log.Info("worker shut down")

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if srv != nil {
		_ = srv.Shutdown(sctx)
	}
	if err := shutdownTracer(sctx); err != nil {
		log.Error("tracer shutdown error", "error", err)
	}
}
