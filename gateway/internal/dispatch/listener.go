// Package dispatch connects lead events to drivers and turns every delivery
// attempt into exactly one RequestResponse event.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/gateway/internal/drivers"
	"github.com/leadgate/leadgate/gateway/internal/events"
	"github.com/leadgate/leadgate/gateway/internal/metrics"
	"github.com/leadgate/leadgate/gateway/internal/models"
)

// Classify maps a driver result kind to the persisted status.
func Classify(kind drivers.Kind) models.Status {
	switch kind {
	case drivers.KindSuccess:
		return models.StatusSuccess
	case drivers.KindRejected:
		return models.StatusFailed
	default:
		return models.StatusRetry
	}
}

// deliverer holds what both listener variants share.
type deliverer struct {
	driver drivers.Driver
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time
}

func newDeliverer(d drivers.Driver, bus *events.Bus, logger *slog.Logger) deliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return deliverer{
		driver: d,
		bus:    bus,
		logger: logger.With(slog.String("component", "dispatch"), logging.Driver(d.Name())),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// call runs SendLead, converting a panic into a transient result.
func (d deliverer) call(ctx context.Context, payload models.Payload) (res drivers.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = drivers.Transient(fmt.Sprintf("driver panic: %v", r))
		}
	}()
	return d.driver.SendLead(ctx, payload)
}

// deliver sends one lead and always publishes exactly one RequestResponse.
func (d deliverer) deliver(ctx context.Context, leadID string, payload models.Payload) {
	start := time.Now()
	res := d.call(ctx, payload)
	status := Classify(res.Kind)

	name := d.driver.Name()
	metrics.DispatchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	metrics.DispatchTotal.WithLabelValues(name, string(status)).Inc()

	level := slog.LevelInfo
	if status != models.StatusSuccess {
		level = slog.LevelWarn
	}
	d.logger.Log(ctx, level, "lead dispatched",
		logging.LeadID(leadID),
		logging.DeliveryStatus(string(status)),
		slog.Any("message", res.Message),
	)

	_ = d.bus.Publish(ctx, events.TypeRequestResponse, events.RequestResponse{
		ID:         leadID,
		Response:   res.Message,
		System:     name,
		Status:     status,
		OccurredAt: d.now(),
	})
}

// LeadListener delivers single NewLead events to one driver.
type LeadListener struct {
	deliverer
}

func NewLeadListener(d drivers.Driver, bus *events.Bus, logger *slog.Logger) *LeadListener {
	return &LeadListener{deliverer: newDeliverer(d, bus, logger)}
}

// Handle delivers the lead. Delivery failures become outcome events, so the
// returned error is always nil.
func (l *LeadListener) Handle(ctx context.Context, ev events.NewLead) error {
	l.deliver(ctx, ev.ID, ev.Data)
	return nil
}

// PackListener delivers NewLeadPack events to one driver, lead by lead in
// input order, skipping leads the eligibility gate refuses.
type PackListener struct {
	deliverer
	eligibility Eligibility
}

func NewPackListener(d drivers.Driver, bus *events.Bus, eligibility Eligibility, logger *slog.Logger) *PackListener {
	if eligibility == nil {
		eligibility = ProcessAll
	}
	return &PackListener{deliverer: newDeliverer(d, bus, logger), eligibility: eligibility}
}

// Handle walks the batch. One lead's failure never stops the rest.
func (p *PackListener) Handle(ctx context.Context, ev events.NewLeadPack) error {
	name := p.driver.Name()
	for _, lead := range ev.Leads {
		if lead == nil {
			continue
		}
		ok, err := p.eligibility.NeedToProcess(ctx, lead, name)
		if err != nil {
			// Eligibility lookups are best effort: a duplicate delivery is
			// preferable to a lost one.
			p.logger.WarnContext(ctx, "eligibility check failed, delivering anyway",
				logging.LeadID(lead.ID), logging.Error(err))
			ok = true
		}
		if !ok {
			metrics.DispatchSkipped.WithLabelValues(name).Inc()
			p.logger.DebugContext(ctx, "lead skipped", logging.LeadID(lead.ID))
			continue
		}
		p.deliver(ctx, lead.ID, lead.Data)
	}
	return nil
}

// Register subscribes a LeadListener and a PackListener for every driver in
// the registry, in registration order.
func Register(bus *events.Bus, registry *drivers.Registry, eligibility Eligibility, logger *slog.Logger) {
	for _, d := range registry.Drivers() {
		single := NewLeadListener(d, bus, logger)
		pack := NewPackListener(d, bus, eligibility, logger)
		bus.Subscribe(events.TypeNewLead, "dispatch."+d.Name(), events.On(single.Handle))
		bus.Subscribe(events.TypeNewLeadPack, "dispatch-pack."+d.Name(), events.On(pack.Handle))
	}
}
