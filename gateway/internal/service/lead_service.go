// Package service holds the gateway's use cases: accepting leads into the
// dispatch pipeline and managing applications.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/gateway/internal/audit"
	"github.com/leadgate/leadgate/gateway/internal/events"
	"github.com/leadgate/leadgate/gateway/internal/models"
	"github.com/leadgate/leadgate/gateway/internal/repository"
)

var (
	ErrEmptyPayload  = errors.New("lead payload is empty")
	ErrEmptyBatch    = errors.New("batch contains no leads")
	ErrBatchTooLarge = errors.New("batch too large")
)

// MaxBatchSize caps the number of leads accepted in one batch.
const MaxBatchSize = 500

// BatchItem is one lead of a batch submission.
type BatchItem struct {
	Data    models.Payload `json:"data"`
	Exclude []string       `json:"exclude,omitempty"`
}

type LeadService struct {
	leads    repository.LeadRepository
	requests repository.RequestRepository
	bus      *events.Bus
	auditLog *audit.Logger
	logger   *slog.Logger
	now      func() time.Time
}

func NewLeadService(leads repository.LeadRepository, requests repository.RequestRepository, bus *events.Bus, logger *slog.Logger) *LeadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeadService{
		leads:    leads,
		requests: requests,
		bus:      bus,
		logger:   logger.With(slog.String("component", "lead_service")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithAudit records lead deletions in the audit log.
func (s *LeadService) WithAudit(l *audit.Logger) *LeadService {
	s.auditLog = l
	return s
}

func (s *LeadService) newLead(app *models.Application, data models.Payload, exclude []string) (*models.Lead, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lead ID: %w", err)
	}
	return &models.Lead{
		ID:              id.String(),
		ApplicationID:   app.ID,
		Data:            data,
		ExcludedDrivers: normalizeDrivers(exclude),
		CreatedAt:       s.now(),
	}, nil
}

// Submit stores a single lead and dispatches it to every driver. Delivery
// outcomes are recorded asynchronously to the caller's view; dispatch errors
// never fail the submission.
func (s *LeadService) Submit(ctx context.Context, app *models.Application, data models.Payload) (*models.Lead, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	lead, err := s.newLead(app, data, nil)
	if err != nil {
		return nil, err
	}
	if err := s.leads.CreateLeads(ctx, lead); err != nil {
		return nil, fmt.Errorf("store lead: %w", err)
	}

	if err := s.bus.Publish(ctx, events.TypeNewLead, events.NewLead{ID: lead.ID, Data: lead.Data}); err != nil {
		s.logger.WarnContext(ctx, "lead dispatch reported errors", logging.LeadID(lead.ID), logging.Error(err))
	}
	return lead, nil
}

// SubmitBatch stores all leads, then dispatches them as one pack in input order.
func (s *LeadService) SubmitBatch(ctx context.Context, app *models.Application, items []BatchItem) ([]*models.Lead, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(items) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d leads (max %d)", ErrBatchTooLarge, len(items), MaxBatchSize)
	}

	leads := make([]*models.Lead, 0, len(items))
	for i, item := range items {
		if len(item.Data) == 0 {
			return nil, fmt.Errorf("lead %d: %w", i, ErrEmptyPayload)
		}
		lead, err := s.newLead(app, item.Data, item.Exclude)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if err := s.leads.CreateLeads(ctx, leads...); err != nil {
		return nil, fmt.Errorf("store leads: %w", err)
	}

	if err := s.bus.Publish(ctx, events.TypeNewLeadPack, events.NewLeadPack{Leads: leads}); err != nil {
		s.logger.WarnContext(ctx, "batch dispatch reported errors", slog.Int("leads", len(leads)), logging.Error(err))
	}
	return leads, nil
}

func (s *LeadService) List(ctx context.Context, app *models.Application, limit, offset int) ([]*models.Lead, int, error) {
	return s.leads.ListLeads(ctx, app.ID, limit, offset)
}

// Get returns the lead only when it belongs to app.
func (s *LeadService) Get(ctx context.Context, app *models.Application, id string) (*models.Lead, error) {
	lead, err := s.leads.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.ApplicationID != app.ID {
		return nil, repository.ErrLeadNotFound
	}
	return lead, nil
}

// Delete removes the lead and its delivery records.
func (s *LeadService) Delete(ctx context.Context, app *models.Application, id, ipAddress string) error {
	err := s.leads.DeleteLead(ctx, app.ID, id)
	if s.auditLog != nil && !errors.Is(err, repository.ErrLeadNotFound) {
		result, reason := audit.ResultSuccess, ""
		if err != nil {
			result, reason = audit.ResultFailure, err.Error()
		}
		s.auditLog.Log(ctx, app.ClientID, ipAddress, audit.ActionLeadDelete, "lead", id, result, reason)
	}
	return err
}

// Requests lists delivery records of app's leads.
func (s *LeadService) Requests(ctx context.Context, app *models.Application, filter models.RequestFilter) ([]*models.Request, int, error) {
	filter.ApplicationID = app.ID
	return s.requests.ListRequests(ctx, filter)
}

func normalizeDrivers(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
