package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/leadgate/leadgate/common/httputil"
)

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

type HealthHandler struct {
	version string
	checks  map[string]Checker
}

func NewHealthHandler(version string, checks map[string]Checker) *HealthHandler {
	return &HealthHandler{version: version, checks: checks}
}

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// Health runs every check. Any failure turns the response into 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "healthy", Version: h.version, Components: map[string]string{}}
	code := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Components[name] = err.Error()
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}
	httputil.WriteJSON(w, code, resp)
}
