package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bryanwahyu/brandsentry/internal/app"
	"github.com/bryanwahyu/brandsentry/internal/config"
	"github.com/bryanwahyu/brandsentry/internal/logging"
	"github.com/bryanwahyu/brandsentry/internal/telemetry"
)

var version = "dev"

func main() {
	log := logging.Init("brandsentry-api")

	// load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Error("config load error", "error", err)
		os.Exit(1)
	}

	telemetry.InitMetrics()
	shutdownTracer, err := telemetry.InitTracer("brandsentry-api", version)
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

	var wg sync.WaitGroup
	if cfg.Server.EmbeddedWorker {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := application.RunWorker(ctx, cfg.Server.ShutdownTimeout); err != nil {
				log.Error("embedded worker stopped", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      application.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Info("server listening", "addr", addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info("shutting down server...")

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	wg.Wait()
	if err := shutdownTracer(sctx); err != nil {
		log.Error("tracer shutdown error", "error", err)
	}
}
