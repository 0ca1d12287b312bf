// Package status persists delivery outcomes published on the bus.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/gateway/internal/events"
	"github.com/leadgate/leadgate/gateway/internal/metrics"
	"github.com/leadgate/leadgate/gateway/internal/models"
	"github.com/leadgate/leadgate/gateway/internal/repository"
)

// SubscriberName identifies the store on the bus.
const SubscriberName = "status-store"

// Store upserts one Request row per (lead, driver) for every RequestResponse.
type Store struct {
	repo   repository.RequestRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(repo repository.RequestRepository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:   repo,
		logger: logger.With(slog.String("component", SubscriberName)),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register subscribes the store to RequestResponse events.
func (s *Store) Register(bus *events.Bus) {
	bus.Subscribe(events.TypeRequestResponse, SubscriberName, events.On(s.HandleResponse))
}

// HandleResponse writes the outcome. A later event for the same key
// overwrites an earlier one.
func (s *Store) HandleResponse(ctx context.Context, ev events.RequestResponse) error {
	switch ev.Status {
	case models.StatusSuccess, models.StatusFailed, models.StatusRetry:
	default:
		return fmt.Errorf("refusing to store status %q for lead %s", ev.Status, ev.ID)
	}

	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = s.now()
	}
	req := &models.Request{
		LeadID:    ev.ID,
		System:    ev.System,
		Status:    ev.Status,
		Message:   SerializeMessage(ev.Response),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.repo.UpsertRequest(ctx, req); err != nil {
		return fmt.Errorf("store outcome for lead %s: %w", ev.ID, err)
	}

	metrics.StatusWrites.WithLabelValues(string(ev.Status)).Inc()
	s.logger.DebugContext(ctx, "request status stored",
		logging.LeadID(ev.ID),
		logging.Driver(ev.System),
		logging.DeliveryStatus(string(ev.Status)),
	)
	return nil
}

// SerializeMessage renders an outcome message for storage. Strings pass
// through, errors use their text, nil is empty and anything else is JSON.
func SerializeMessage(msg any) string {
	switch m := msg.(type) {
	case nil:
		return ""
	case string:
		return m
	case []byte:
		return string(m)
	case error:
		return m.Error()
	case fmt.Stringer:
		return m.String()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Sprintf("%v", msg)
	}
	return string(data)
}

// Outcome converts an event to its wire form.
func Outcome(ev events.RequestResponse) models.Outcome {
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return models.Outcome{
		LeadID:     ev.ID,
		System:     ev.System,
		Status:     ev.Status,
		Message:    SerializeMessage(ev.Response),
		OccurredAt: ts,
	}
}
