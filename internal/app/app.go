// Package app wires configuration, stores and adapters into the services
// used by the API and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	nats "github.com/nats-io/nats.go"

	"github.com/bryanwahyu/brandsentry/internal/application"
	appjobs "github.com/bryanwahyu/brandsentry/internal/application/jobs"
	appnrd "github.com/bryanwahyu/brandsentry/internal/application/nrd"
	appscans "github.com/bryanwahyu/brandsentry/internal/application/scans"
	"github.com/bryanwahyu/brandsentry/internal/application/scoring"
	"github.com/bryanwahyu/brandsentry/internal/config"
	domain "github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/infra/ai/openai"
	"github.com/bryanwahyu/brandsentry/internal/infra/dns"
	"github.com/bryanwahyu/brandsentry/internal/infra/evidence"
	"github.com/bryanwahyu/brandsentry/internal/infra/httpserver"
	"github.com/bryanwahyu/brandsentry/internal/infra/notify"
	"github.com/bryanwahyu/brandsentry/internal/infra/ratelimit"
	"github.com/bryanwahyu/brandsentry/internal/infra/social"
	"github.com/bryanwahyu/brandsentry/internal/infra/storage"
	"github.com/bryanwahyu/brandsentry/internal/logging"
	"github.com/bryanwahyu/brandsentry/internal/middleware"
)

// Application holds the wired components of one process.
type Application struct {
	Config       *config.Config
	Log          *slog.Logger
	Stores       *Stores
	Limiters     *ratelimit.Set
	Scans        *appscans.Service
	NRD          *appnrd.Service
	Orchestrator *appscans.Orchestrator
	Worker       *appjobs.Worker
	Health       map[string]middleware.HealthChecker

	closers []func() error
}

// New connects every configured backend. Optional backends (MinIO, NATS,
// OpenAI) are skipped when their section is empty.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Application, error) {
	a := &Application{
		Config:   cfg,
		Log:      logging.OrDefault(log),
		Limiters: ratelimit.NewSet(cfg.Limits),
		Health:   map[string]middleware.HealthChecker{},
	}
	if err := a.bootstrap(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return a, nil
}

func (a *Application) bootstrap(ctx context.Context) error {
	cfg := a.Config

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	a.Stores = stores
	if stores.DB != nil {
		a.closers = append(a.closers, stores.DB.Close)
		a.Health["database"] = &middleware.DatabaseHealthChecker{DB: stores.DB}
	}

	var (
		shots  evidence.ScreenshotStore
		images scoring.ImageLinker
	)
	if cfg.Minio.Endpoint != "" {
		st, err := storage.New(ctx, cfg.Minio.Endpoint, cfg.Minio.Region, cfg.Minio.BucketName,
			cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL, cfg.Minio.PresignExpiry)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		shots, images = st, st
		a.Health["minio"] = middleware.CheckFunc(st.Ping)
	}

	engine := &scoring.Engine{Images: images, AI: a.Limiters.AI, Log: a.Log}
	if cfg.OpenAI.APIKey != "" {
		oc := openai.NewClient(cfg.OpenAI)
		engine.Intent, engine.Vision = oc, oc
	}

	var sink domain.NotificationSink = notify.LogSink{Log: a.Log}
	if cfg.NATS.URL != "" {
		nc, err := notify.Connect(cfg.NATS.URL, "brandsentry")
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		a.closers = append(a.closers, func() error { nc.Close(); return nil })
		a.Health["nats"] = middleware.CheckFunc(func(context.Context) error {
			if nc.Status() != nats.CONNECTED {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		})
		sink = notify.NewNATSSink(nc, cfg.NATS.SubjectPrefix)
	}

	clock := application.SystemClock{}
	a.Orchestrator = &appscans.Orchestrator{
		Scans:    stores.Scans,
		Brands:   stores.Brands,
		Threats:  stores.Threats,
		DNS:      dns.NewChecker(cfg.DNS, a.Limiters.DNS, nil, a.Log),
		Evidence: evidence.New(cfg.Evidence, a.Limiters, nil, shots, a.Log),
		Scorer:   engine,
		Social:   social.New(cfg.Social, a.Limiters.External, nil, a.Log),
		Notify:   sink,
		Alerts: &notify.Dispatcher{
			Mailer:  notify.LogMailer{Log: a.Log},
			Gate:    a.Limiters.External,
			Timeout: cfg.Alerts.WebhookTimeout,
			Log:     a.Log,
		},
		Limiters: a.Limiters,
		Clock:    clock,
		Log:      a.Log,
		Options:  cfg.Scan,
	}
	a.Worker = &appjobs.Worker{
		Store:  stores.Jobs,
		Scans:  stores.Scans,
		Runner: a.Orchestrator,
		Clock:  clock,
		Log:    a.Log,
		Config: cfg.Worker,
	}
	a.Scans = &appscans.Service{
		Scans:   stores.Scans,
		Jobs:    stores.Jobs,
		Brands:  stores.Brands,
		Threats: stores.Threats,
		Clock:   clock,
		Log:     a.Log,
	}
	a.NRD = &appnrd.Service{Brands: stores.Brands, Log: a.Log}
	return nil
}

// Handler returns the REST surface.
func (a *Application) Handler() http.Handler {
	return httpserver.NewRouter(a.Scans, a.NRD, httpserver.Options{
		APIKeys:        a.Config.Auth.APIKeys,
		AllowedOrigins: a.Config.CORS.AllowedOrigins,
		RatePerSecond:  a.Config.Auth.RatePerSecond,
		RateBurst:      a.Config.Auth.RateBurst,
		Health:         a.Health,
		Log:            a.Log,
	})
}

// RunWorker blocks until ctx is cancelled. In-flight limiter tasks are given
// drainTimeout to finish once the worker loop has returned.
func (a *Application) RunWorker(ctx context.Context, drainTimeout time.Duration) error {
	err := a.Worker.Run(ctx)
	if drainTimeout > 0 {
		dctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if derr := a.Limiters.Drain(dctx); derr != nil {
			a.Log.Warn("limiter drain incomplete", "error", derr)
		}
	}
	return err
}

// Close releases connections in reverse order of creation.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
