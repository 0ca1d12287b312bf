package server

import (
	"log/slog"
	"net/http"

	"github.com/leadgate/leadgate/common/middleware"

	"github.com/leadgate/leadgate/gateway/internal/handlers"
	"github.com/leadgate/leadgate/gateway/internal/metrics"
	gatemw "github.com/leadgate/leadgate/gateway/internal/middleware"
	"github.com/leadgate/leadgate/gateway/internal/ratelimit"
)

// Deps are the handlers and guards the router wires together. Tracking and
// Feed are optional.
type Deps struct {
	Leads      *handlers.LeadHandler
	Admin      *handlers.AdminHandler
	Tracking   *handlers.TrackingHandler
	Health     *handlers.HealthHandler
	Feed       http.Handler
	Gate       *gatemw.Gate
	Limiter    ratelimit.RateLimiter
	AdminToken string
	Logger     *slog.Logger
}

// NewRouter constructs a ServeMux with the client API behind the signature
// gate and the operator API behind the admin token.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	limiter := d.Limiter
	if limiter == nil {
		limiter = ratelimit.NoOpRateLimiter{}
	}
	limit := ratelimit.Middleware(limiter, d.Logger)

	// Signed client endpoints: gate first so the limiter keys on client id.
	signed := func(h http.HandlerFunc) http.Handler {
		return d.Gate.Authenticate(limit(h))
	}
	mux.Handle("POST /api/v1/leads", signed(d.Leads.Create))
	mux.Handle("POST /api/v1/leads/batch", signed(d.Leads.CreateBatch))
	mux.Handle("GET /api/v1/leads", signed(d.Leads.List))
	mux.Handle("GET /api/v1/leads/{id}", signed(d.Leads.Get))
	mux.Handle("DELETE /api/v1/leads/{id}", signed(d.Leads.Delete))
	mux.Handle("GET /api/v1/requests", signed(d.Leads.ListRequests))

	if d.Tracking != nil {
		mux.Handle("POST /api/v1/tracking/click", signed(d.Tracking.Click))
		mux.Handle("POST /api/v1/tracking/events", signed(d.Tracking.SendEvent))
		mux.Handle("POST /api/v1/tracking/transactions/{order_id}", signed(d.Tracking.SetTransactionStatus))
	}

	// Operator endpoints
	admin := gatemw.RequireAdmin(d.AdminToken)
	mux.Handle("POST /admin/v1/applications", admin(http.HandlerFunc(d.Admin.CreateApplication)))
	mux.Handle("GET /admin/v1/applications", admin(http.HandlerFunc(d.Admin.ListApplications)))
	mux.Handle("POST /admin/v1/applications/{client_id}/rotate", admin(http.HandlerFunc(d.Admin.RotateApplication)))
	if d.Feed != nil {
		mux.Handle("GET /admin/v1/feed", admin(d.Feed))
	}

	// Public
	mux.HandleFunc("GET /healthz", d.Health.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return middleware.RequestID(middleware.AccessLog(logger)(mux))
}
