package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ghostcrm/messaging/internal/messaging/middleware"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports database liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig carries everything NewRouter needs to assemble the service mux.
type RouterConfig struct {
	JWTSecret                 string
	WebhookRateLimitPerMinute int

	DB          repository.Querier
	Memberships repository.MembershipRepository
	Health      Pinger

	Messages *MessageHandler
	Telecom  *TelecomHandler
	Webhooks *WebhookHandler

	Logger *slog.Logger
}

// NewRouter assembles the chi mux. Management routes under /api require a
// bearer token and an org membership; vendor webhook routes are signature
// checked per request and rate limited instead.
func NewRouter(rc RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.RealIP)
	r.Use(chi_middleware.Recoverer)
	r.Use(chi_middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if rc.Health != nil {
			if err := rc.Health.Ping(req.Context()); err != nil {
				rc.Logger.ErrorContext(req.Context(), "health check failed", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "degraded"})
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Group(func(private chi.Router) {
			private.Use(middleware.Auth(rc.JWTSecret, rc.Logger))
			private.Use(middleware.RequireOrg(rc.DB, rc.Memberships, rc.Logger))
			rc.Messages.RegisterRoutes(private)
			rc.Telecom.RegisterRoutes(private)
		})

		// Vendor callbacks authenticate per request via signature checks,
		// not bearer tokens.
		api.Group(func(hooks chi.Router) {
			if rc.WebhookRateLimitPerMinute > 0 {
				hooks.Use(httprate.LimitByIP(rc.WebhookRateLimitPerMinute, time.Minute))
			}
			rc.Webhooks.RegisterRoutes(hooks)
		})
	})

	return r
}
