// Package middleware holds the gateway's HTTP admission middleware: the
// signed-request gate for client traffic and the bearer check for admin routes.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/leadgate/leadgate/common/httputil"
	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/common/signing"
	"github.com/leadgate/leadgate/gateway/internal/metrics"
	"github.com/leadgate/leadgate/gateway/internal/models"
	"github.com/leadgate/leadgate/gateway/internal/params"
	"github.com/leadgate/leadgate/gateway/internal/repository"
)

// Request parameters consumed by the gate.
const (
	ParamToken     = "token"
	ParamSignature = "sig"
)

type contextKey string

const (
	applicationKey contextKey = "application"
	paramsKey      contextKey = "params"
)

// ApplicationLookup resolves an application by client id.
type ApplicationLookup interface {
	GetApplicationByClientID(ctx context.Context, clientID string) (*models.Application, error)
}

// Gate admits only requests signed with a registered application's secret.
type Gate struct {
	apps     ApplicationLookup
	maxBytes int64
	logger   *slog.Logger
}

func NewGate(apps ApplicationLookup, maxBytes int64, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{apps: apps, maxBytes: maxBytes, logger: logger.With(slog.String("component", "auth_gate"))}
}

// Authenticate verifies token and sig, strips both from the parameter set
// and stores the application and remaining parameters in the request context.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		all, err := params.FromRequest(r, g.maxBytes)
		if err != nil {
			g.reject(w, r, http.StatusBadRequest, "malformed_request", err.Error())
			return
		}

		clientID, hasToken := all.Get(ParamToken)
		sig, hasSig := all.Get(ParamSignature)
		if !hasToken || !hasSig || clientID == "" || sig == "" {
			g.reject(w, r, http.StatusUnauthorized, "missing_credentials", "unauthorized")
			return
		}

		app, err := g.apps.GetApplicationByClientID(ctx, clientID)
		if errors.Is(err, repository.ErrApplicationNotFound) {
			g.reject(w, r, http.StatusUnauthorized, "unknown_client", "unauthorized")
			return
		}
		if err != nil {
			g.logger.ErrorContext(ctx, "application lookup failed", logging.ClientID(clientID), logging.Error(err))
			httputil.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}

		signed := all.Without(ParamSignature)
		if !signing.NewSigner(app.ClientSecret).Verify(signed, sig) {
			g.reject(w, r, http.StatusBadRequest, "bad_signature", "invalid signature")
			return
		}

		ctx = WithApplication(ctx, app)
		ctx = WithParams(ctx, signed.Without(ParamToken))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, status int, reason, msg string) {
	metrics.AuthRejections.WithLabelValues(reason).Inc()
	g.logger.WarnContext(r.Context(), "request rejected",
		slog.String("reason", reason),
		logging.Status(status),
		logging.IP(httputil.GetClientIP(r)),
		logging.Path(r.URL.Path),
	)
	httputil.WriteError(w, status, msg)
}

// WithApplication returns a copy of ctx carrying app.
func WithApplication(ctx context.Context, app *models.Application) context.Context {
	return context.WithValue(ctx, applicationKey, app)
}

// ApplicationFromContext returns the application attached by the gate, or nil.
func ApplicationFromContext(ctx context.Context) *models.Application {
	app, _ := ctx.Value(applicationKey).(*models.Application)
	return app
}

// WithParams returns a copy of ctx carrying p.
func WithParams(ctx context.Context, p params.Params) context.Context {
	return context.WithValue(ctx, paramsKey, p)
}

// ParamsFromContext returns the verified parameters minus token and sig.
func ParamsFromContext(ctx context.Context) params.Params {
	p, _ := ctx.Value(paramsKey).(params.Params)
	return p
}
