package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	appnrd "github.com/bryanwahyu/brandsentry/internal/application/nrd"
	appscans "github.com/bryanwahyu/brandsentry/internal/application/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/jobs"
	domain "github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/logging"
	"github.com/bryanwahyu/brandsentry/internal/middleware"
)

const maxBodyBytes = 4 << 20

// Options configures the cross-cutting middleware. Zero values disable auth
// and rate limiting.
type Options struct {
	APIKeys        map[string]string
	AllowedOrigins []string
	RatePerSecond  float64
	RateBurst      int
	Health         map[string]middleware.HealthChecker
	Log            *slog.Logger
}

type Router struct {
	scansSvc *appscans.Service
	nrdSvc   *appnrd.Service
	log      *slog.Logger
}

func NewRouter(scansSvc *appscans.Service, nrdSvc *appnrd.Service, opts Options) http.Handler {
	r := &Router{scansSvc: scansSvc, nrdSvc: nrdSvc, log: logging.OrDefault(opts.Log)}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(r.log))
	mux.Use(middleware.Metrics)
	if len(opts.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/livez", middleware.LivenessHandler)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		if opts.RatePerSecond > 0 {
			rt.Use(middleware.RateLimit(middleware.NewRateLimiter(opts.RatePerSecond, opts.RateBurst)))
		}
		rt.Post("/scans", r.wrap(r.handleEnqueue))
		rt.Get("/scan", r.wrap(r.handleGetScan))
		rt.Post("/scan/cancel", r.wrap(r.handleCancel))
		rt.Get("/threats", r.wrap(r.handleThreats))
		rt.Post("/nrd/match", r.wrap(r.handleNRDMatch))
	})

	return otelhttp.NewHandler(mux, "brandsentry-api")
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks caller errors.
type badRequest struct{ error }

func invalid(format string, args ...any) error {
	return badRequest{fmt.Errorf(format, args...)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var br badRequest
		switch {
		case errors.As(err, &br):
			writeJSON(w, http.StatusBadRequest, errorBody(err))
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, brands.ErrNotFound), errors.Is(err, jobs.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody(err))
		case errors.Is(err, domain.ErrFinished):
			writeJSON(w, http.StatusConflict, errorBody(err))
		case errors.Is(err, domain.ErrPermanent), errors.Is(err, appnrd.ErrFeedTooLarge):
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err))
		default:
			r.log.Error("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody(errors.New("internal error")))
		}
	}
}

// POST /v1/scans
// Body: {"brand_id": "...", "scan_type": "full", "priority": 0, "scheduled_at": "...", "overrides": {...}}
func (r *Router) handleEnqueue(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		BrandID     string           `json:"brand_id"`
		ScanType    domain.Type      `json:"scan_type"`
		Priority    int              `json:"priority"`
		ScheduledAt *time.Time       `json:"scheduled_at"`
		Overrides   domain.Overrides `json:"overrides"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateBrandID(body.BrandID); err != nil {
		return badRequest{err}
	}
	if body.ScanType == "" {
		body.ScanType = domain.TypeFull
	}

	cmd := appscans.EnqueueCommand{
		BrandID:   body.BrandID,
		Type:      body.ScanType,
		Priority:  body.Priority,
		Overrides: body.Overrides,
	}
	if body.ScheduledAt != nil {
		cmd.ScheduledAt = body.ScheduledAt.UTC()
	}
	res, err := r.scansSvc.Enqueue(req.Context(), cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusAccepted, res)
}

// GET /v1/scan?id=<scan id>
func (r *Router) handleGetScan(w http.ResponseWriter, req *http.Request) error {
	id := req.URL.Query().Get("id")
	if err := middleware.ValidateScanID(id); err != nil {
		return badRequest{err}
	}
	scan, err := r.scansSvc.Get(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, scan)
}

// POST /v1/scan/cancel
// Body: {"scan_id": "<id>"}
func (r *Router) handleCancel(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ScanID string `json:"scan_id"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateScanID(body.ScanID); err != nil {
		return badRequest{err}
	}
	scan, err := r.scansSvc.Cancel(req.Context(), body.ScanID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, scan)
}

// GET /v1/threats?brand_id=&page=&page_size=
func (r *Router) handleThreats(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	brandID := q.Get("brand_id")
	if err := middleware.ValidateBrandID(brandID); err != nil {
		return badRequest{err}
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(q.Get("page_size"))

	list, err := r.scansSvc.ListThreats(req.Context(), brandID, page, middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /v1/nrd/match
// Body: {"domains": ["..."], "brand_ids": ["..."]}
func (r *Router) handleNRDMatch(w http.ResponseWriter, req *http.Request) error {
	var cmd appnrd.MatchCommand
	if err := decode(req, &cmd); err != nil {
		return err
	}
	if len(cmd.Domains) == 0 {
		return invalid("domains is required")
	}
	for i, d := range cmd.Domains {
		cmd.Domains[i] = middleware.SanitizeString(d)
	}
	res, err := r.nrdSvc.Match(req.Context(), cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

func decode(req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalid("invalid request body: %v", err)
	}
	return nil
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
