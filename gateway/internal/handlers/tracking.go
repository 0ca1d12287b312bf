package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/leadgate/leadgate/common/httputil"
	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/gateway/internal/drivers/tracking"
	"github.com/leadgate/leadgate/gateway/internal/middleware"
)

// Tracker is the sale tracker capability exposed over HTTP.
type Tracker interface {
	Track(ctx context.Context) bool
	SendEvent(ctx context.Context, eventName, productID, orderID string, data ...string) (*tracking.TrackerResponse, error)
	SetTransactionStatus(ctx context.Context, orderID, status string) (bool, error)
}

type TrackingHandler struct {
	tracker Tracker
	logger  *slog.Logger
}

func NewTrackingHandler(t Tracker, logger *slog.Logger) *TrackingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackingHandler{tracker: t, logger: logger}
}

// Click records a visitor click.
func (h *TrackingHandler) Click(w http.ResponseWriter, r *http.Request) {
	ok := h.tracker.Track(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

// SendEvent registers a sale event. Parameters: event (required),
// product_id, order_id, data1..data5.
func (h *TrackingHandler) SendEvent(w http.ResponseWriter, r *http.Request) {
	p := middleware.ParamsFromContext(r.Context())
	event, _ := p.Get("event")
	if event == "" {
		httputil.WriteError(w, http.StatusBadRequest, "event is required")
		return
	}
	productID, _ := p.Get("product_id")
	orderID, _ := p.Get("order_id")

	var data []string
	for i := 1; i <= tracking.MaxDataFields; i++ {
		v, ok := p.Get(fmt.Sprintf("data%d", i))
		if !ok {
			break
		}
		data = append(data, v)
	}

	resp, err := h.tracker.SendEvent(r.Context(), event, productID, orderID, data...)
	if err != nil {
		h.logger.WarnContext(r.Context(), "tracker unavailable", logging.Error(err))
		httputil.WriteError(w, http.StatusBadGateway, "tracker unavailable")
		return
	}
	status := http.StatusOK
	if !resp.OK() {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, resp)
}

// SetTransactionStatus updates the tracker transaction for an order.
func (h *TrackingHandler) SetTransactionStatus(w http.ResponseWriter, r *http.Request) {
	p := middleware.ParamsFromContext(r.Context())
	status, _ := p.Get("status")
	if status == "" {
		httputil.WriteError(w, http.StatusBadRequest, "status is required")
		return
	}

	ok, err := h.tracker.SetTransactionStatus(r.Context(), r.PathValue("order_id"), status)
	if err != nil {
		h.logger.WarnContext(r.Context(), "tracker login failed", logging.Error(err))
		httputil.WriteError(w, http.StatusBadGateway, "tracker unavailable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": ok})
}
