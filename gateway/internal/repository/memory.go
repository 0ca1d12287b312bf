package repository

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/leadgate/leadgate/gateway/internal/models"
)

type requestKey struct {
	leadID string
	system string
}

// InMemoryRepository keeps everything in maps. Development and tests only.
type InMemoryRepository struct {
	mu           sync.RWMutex
	apps         map[string]*models.Application // by client id
	leads        map[string]*models.Lead
	requests     map[requestKey]*models.Request
	requestOrder uint64
	writeSeq     map[requestKey]uint64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		apps:     make(map[string]*models.Application),
		leads:    make(map[string]*models.Lead),
		requests: make(map[requestKey]*models.Request),
		writeSeq: make(map[requestKey]uint64),
	}
}

func (r *InMemoryRepository) Ping(context.Context) error { return nil }

func (r *InMemoryRepository) Close() {}

// =============================================================================
// APPLICATIONS
// =============================================================================

func (r *InMemoryRepository) CreateApplication(_ context.Context, app *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.apps[app.ClientID]; exists {
		return ErrApplicationExists
	}
	stored := *app
	r.apps[app.ClientID] = &stored
	return nil
}

func (r *InMemoryRepository) GetApplicationByClientID(_ context.Context, clientID string) (*models.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.apps[clientID]
	if !ok {
		return nil, ErrApplicationNotFound
	}
	out := *app
	return &out, nil
}

func (r *InMemoryRepository) ListApplications(context.Context) ([]*models.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Application, 0, len(r.apps))
	for _, app := range r.apps {
		a := *app
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) ReplaceKeys(_ context.Context, previousClientID string, app *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.apps[previousClientID]
	if !ok {
		return ErrApplicationNotFound
	}
	if _, taken := r.apps[app.ClientID]; taken && app.ClientID != previousClientID {
		return ErrApplicationExists
	}
	delete(r.apps, previousClientID)
	updated := *existing
	updated.ClientID = app.ClientID
	updated.ClientSecret = app.ClientSecret
	updated.UpdatedAt = app.UpdatedAt
	r.apps[app.ClientID] = &updated
	return nil
}

// =============================================================================
// LEADS
// =============================================================================

func (r *InMemoryRepository) CreateLeads(_ context.Context, leads ...*models.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range leads {
		if _, exists := r.leads[l.ID]; exists {
			return ErrLeadExists
		}
	}
	for _, l := range leads {
		stored := cloneLead(l)
		r.leads[l.ID] = stored
	}
	return nil
}

func (r *InMemoryRepository) GetLead(_ context.Context, id string) (*models.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return cloneLead(l), nil
}

func (r *InMemoryRepository) ListLeads(_ context.Context, applicationID string, limit, offset int) ([]*models.Lead, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Lead
	for _, l := range r.leads {
		if l.ApplicationID == applicationID {
			matched = append(matched, l)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := window(matched, limit, offset)
	out := make([]*models.Lead, len(page))
	for i, l := range page {
		out[i] = cloneLead(l)
	}
	return out, len(matched), nil
}

func (r *InMemoryRepository) DeleteLead(_ context.Context, applicationID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.leads[id]
	if !ok || l.ApplicationID != applicationID {
		return ErrLeadNotFound
	}
	delete(r.leads, id)
	for key := range r.requests {
		if key.leadID == id {
			delete(r.requests, key)
			delete(r.writeSeq, key)
		}
	}
	return nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (r *InMemoryRepository) UpsertRequest(_ context.Context, req *models.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := requestKey{leadID: req.LeadID, system: req.System}
	stored := *req
	if existing, ok := r.requests[key]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	r.requests[key] = &stored
	r.requestOrder++
	r.writeSeq[key] = r.requestOrder
	return nil
}

func (r *InMemoryRepository) GetRequest(_ context.Context, leadID, system string) (*models.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[requestKey{leadID: leadID, system: system}]
	if !ok {
		return nil, ErrRequestNotFound
	}
	out := *req
	return &out, nil
}

func (r *InMemoryRepository) ListRequests(_ context.Context, f models.RequestFilter) ([]*models.Request, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type entry struct {
		req *models.Request
		seq uint64
	}
	var matched []entry
	for key, req := range r.requests {
		if f.LeadID != "" && req.LeadID != f.LeadID {
			continue
		}
		if f.System != "" && req.System != f.System {
			continue
		}
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		if f.ApplicationID != "" {
			l, ok := r.leads[req.LeadID]
			if !ok || l.ApplicationID != f.ApplicationID {
				continue
			}
		}
		matched = append(matched, entry{req: req, seq: r.writeSeq[key]})
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	page := window(matched, f.Limit, f.Offset)
	out := make([]*models.Request, len(page))
	for i, e := range page {
		req := *e.req
		out[i] = &req
	}
	return out, len(matched), nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneLead(l *models.Lead) *models.Lead {
	out := *l
	out.Data = slices.Clone(l.Data)
	out.ExcludedDrivers = slices.Clone(l.ExcludedDrivers)
	return &out
}

var _ Repository = (*InMemoryRepository)(nil)
