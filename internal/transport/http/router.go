// Package httptransport composes the module handlers behind the shared
// middleware stack.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"

	controllerhandler "giveroute/internal/controller/handler"
	donationhandler "giveroute/internal/donation/handler"
	payouthandler "giveroute/internal/payout/handler"
	"giveroute/internal/platform/metrics"
	ratelimit "giveroute/internal/ratelimit/middleware"
	registryhandler "giveroute/internal/registry/handler"
	"giveroute/pkg/platform/httputil"
	"giveroute/pkg/platform/middleware/auth"
	"giveroute/pkg/platform/middleware/request"
	"giveroute/pkg/platform/middleware/requesttime"
)

// Handlers groups the per-module HTTP handlers.
type Handlers struct {
	Registry   *registryhandler.Handler
	Donation   *donationhandler.Handler
	Controller *controllerhandler.Handler
	Payout     *payouthandler.Handler
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type config struct {
	metrics *metrics.Metrics
	limiter *ratelimit.Middleware
	clock   clockwork.Clock
	checks  map[string]HealthCheck
}

type Option func(*config)

// WithMetrics records request latency and mounts /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithRateLimit throttles the authenticated routes per caller.
func WithRateLimit(limiter *ratelimit.Middleware) Option {
	return func(c *config) {
		c.limiter = limiter
	}
}

// WithClock overrides the clock used to stamp request time.
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(c *config) {
		c.checks[name] = check
	}
}

// NewRouter mounts every endpoint. Donations and /admin routes require a
// bearer token; the admin services additionally check the controller.
func NewRouter(h Handlers, validator auth.CallerValidator, logger *slog.Logger, opts ...Option) http.Handler {
	cfg := &config{
		clock:  clockwork.NewRealClock(),
		checks: make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.WithClock(cfg.clock))
	r.Use(middleware.Recoverer)
	if cfg.metrics != nil {
		r.Use(cfg.metrics.Middleware)
		r.Handle("/metrics", metrics.Handler())
	}

	r.Get("/health", healthHandler(cfg.checks, logger))

	h.Registry.Register(r)
	h.Donation.Register(r)
	h.Controller.Register(r)
	h.Payout.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireCaller(validator, logger))
		if cfg.limiter != nil {
			r.Use(cfg.limiter.PerCaller)
		}
		h.Donation.RegisterAuthenticated(r)
		h.Registry.RegisterAdmin(r)
		h.Controller.RegisterAdmin(r)
		h.Payout.RegisterAdmin(r)
	})
	return r
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				status[name] = "unavailable"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		httputil.WriteJSON(w, code, status)
	}
}
