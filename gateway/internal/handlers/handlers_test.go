package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadgate/leadgate/common/httputil"
	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/gateway/internal/audit"
	"github.com/leadgate/leadgate/gateway/internal/drivers/tracking"
	"github.com/leadgate/leadgate/gateway/internal/events"
	"github.com/leadgate/leadgate/gateway/internal/middleware"
	"github.com/leadgate/leadgate/gateway/internal/models"
	"github.com/leadgate/leadgate/gateway/internal/params"
	"github.com/leadgate/leadgate/gateway/internal/repository"
	"github.com/leadgate/leadgate/gateway/internal/service"
)

// ============================================================================
// Test Setup
// ============================================================================

var testApp = &models.Application{ID: "app-1", Name: "landing", ClientID: "cid", ClientSecret: "secret"}

type leadFixture struct {
	handler *LeadHandler
	repo    *repository.InMemoryRepository
	bus     *events.Bus
	ctxSeen []context.Context
}

func newLeadFixture(t *testing.T) *leadFixture {
	t.Helper()
	f := &leadFixture{repo: repository.NewInMemoryRepository(), bus: events.NewBus(logging.Discard())}
	f.bus.Subscribe(events.TypeNewLead, "ctx-capture", func(ctx context.Context, _ any) error {
		f.ctxSeen = append(f.ctxSeen, ctx)
		return nil
	})
	svc := service.NewLeadService(f.repo, f.repo, f.bus, logging.Discard())
	f.handler = NewLeadHandler(svc, logging.Discard())
	return f
}

// authed attaches what the gate would attach.
func authed(r *http.Request, p params.Params) *http.Request {
	ctx := middleware.WithApplication(r.Context(), testApp)
	ctx = middleware.WithParams(ctx, p)
	return r.WithContext(ctx)
}

// ============================================================================
// Leads
// ============================================================================

func TestCreateLead(t *testing.T) {
	f := newLeadFixture(t)
	r := authed(httptest.NewRequest(http.MethodPost, "/api/v1/leads", nil), params.Params{
		{Key: "phone", Value: "+100"},
		{Key: "name", Value: "Ann"},
	})
	w := httptest.NewRecorder()

	f.handler.Create(w, r)

	require.Equal(t, http.StatusAccepted, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body["id"])

	lead, err := f.repo.GetLead(context.Background(), body["id"])
	require.NoError(t, err)
	assert.Equal(t, []string{"phone", "name"}, lead.Data.Keys())
}

func TestCreateLead_DispatchSurvivesClientCancel(t *testing.T) {
	f := newLeadFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := authed(httptest.NewRequest(http.MethodPost, "/api/v1/leads", nil).WithContext(ctx), params.Params{{Key: "a", Value: "1"}})
	w := httptest.NewRecorder()
	f.handler.Create(w, r)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.ctxSeen, 1)
	assert.NoError(t, f.ctxSeen[0].Err())
}

func TestCreateLead_Errors(t *testing.T) {
	f := newLeadFixture(t)

	w := httptest.NewRecorder()
	f.handler.Create(w, httptest.NewRequest(http.MethodPost, "/api/v1/leads", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	f.handler.Create(w, authed(httptest.NewRequest(http.MethodPost, "/api/v1/leads", nil), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBatch(t *testing.T) {
	f := newLeadFixture(t)
	var packs []events.NewLeadPack
	f.bus.Subscribe(events.TypeNewLeadPack, "capture", events.On(func(_ context.Context, ev events.NewLeadPack) error {
		packs = append(packs, ev)
		return nil
	}))

	raw := `[{"data":{"name":"Ann","age":31}},{"data":{"name":"Bob"},"exclude":["crm"]}]`
	r := authed(httptest.NewRequest(http.MethodPost, "/api/v1/leads/batch", nil), params.Params{{Key: ParamLeads, Value: raw}})
	w := httptest.NewRecorder()

	f.handler.CreateBatch(w, r)

	require.Equal(t, http.StatusAccepted, w.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body["ids"], 2)

	require.Len(t, packs, 1)
	require.Len(t, packs[0].Leads, 2)
	assert.Equal(t, body["ids"][0], packs[0].Leads[0].ID)
	assert.Equal(t, models.Payload{{Key: "name", Value: "Ann"}, {Key: "age", Value: "31"}}, packs[0].Leads[0].Data)
	assert.True(t, packs[0].Leads[1].Excludes("crm"))
}

func TestCreateBatch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params params.Params
		want   int
	}{
		{"missing", nil, http.StatusBadRequest},
		{"not json", params.Params{{Key: ParamLeads, Value: "nope"}}, http.StatusBadRequest},
		{"object", params.Params{{Key: ParamLeads, Value: `{"data":{}}`}}, http.StatusBadRequest},
		{"empty", params.Params{{Key: ParamLeads, Value: `[]`}}, http.StatusBadRequest},
		{"empty lead", params.Params{{Key: ParamLeads, Value: `[{"data":{}}]`}}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLeadFixture(t)
			w := httptest.NewRecorder()
			f.handler.CreateBatch(w, authed(httptest.NewRequest(http.MethodPost, "/api/v1/leads/batch", nil), tt.params))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestListLeads_Pagination(t *testing.T) {
	f := newLeadFixture(t)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		f.handler.Create(w, authed(httptest.NewRequest(http.MethodPost, "/api/v1/leads", nil), params.Params{{Key: "n", Value: "x"}}))
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w := httptest.NewRecorder()
	window := params.Params{{Key: "limit", Value: "2"}, {Key: "offset", Value: "2"}}
	f.handler.List(w, authed(httptest.NewRequest(http.MethodGet, "/api/v1/leads?limit=2&offset=2", nil), window))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get(httputil.HeaderPaginationTotal))
	assert.Equal(t, "2", w.Header().Get(httputil.HeaderPaginationPages))
	assert.Equal(t, "1", w.Header().Get(httputil.HeaderPaginationPage))

	var leads []models.Lead
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &leads))
	assert.Len(t, leads, 1)
}

func TestListLeads_EmptyIsArray(t *testing.T) {
	f := newLeadFixture(t)
	w := httptest.NewRecorder()
	f.handler.List(w, authed(httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil), nil))
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetAndDeleteLead(t *testing.T) {
	f := newLeadFixture(t)
	w := httptest.NewRecorder()
	f.handler.Create(w, authed(httptest.NewRequest(http.MethodPost, "/api/v1/leads", nil), params.Params{{Key: "a", Value: "1"}}))
	var created map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["id"]

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/leads/{id}", f.handler.Get)
	mux.HandleFunc("DELETE /api/v1/leads/{id}", f.handler.Delete)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, authed(httptest.NewRequest(http.MethodGet, "/api/v1/leads/"+id, nil), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, authed(httptest.NewRequest(http.MethodDelete, "/api/v1/leads/"+id, nil), nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, authed(httptest.NewRequest(http.MethodDelete, "/api/v1/leads/"+id, nil), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRequests(t *testing.T) {
	f := newLeadFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.CreateLeads(ctx, &models.Lead{ID: "L1", ApplicationID: testApp.ID, Data: models.Payload{{Key: "a", Value: "1"}}}))
	require.NoError(t, f.repo.UpsertRequest(ctx, &models.Request{LeadID: "L1", System: "crm", Status: models.StatusRetry, Message: "timeout"}))
	require.NoError(t, f.repo.UpsertRequest(ctx, &models.Request{LeadID: "L1", System: "tracking", Status: models.StatusSuccess}))

	w := httptest.NewRecorder()
	f.handler.ListRequests(w, authed(httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil), params.Params{{Key: "status", Value: "retry"}}))

	require.Equal(t, http.StatusOK, w.Code)
	var reqs []models.Request
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reqs))
	require.Len(t, reqs, 1)
	assert.Equal(t, "crm", reqs[0].System)
	assert.Equal(t, "timeout", reqs[0].Message)

	w = httptest.NewRecorder()
	f.handler.ListRequests(w, authed(httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil), params.Params{{Key: "status", Value: "lost"}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRequests_WindowFromBody(t *testing.T) {
	f := newLeadFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.CreateLeads(ctx, &models.Lead{ID: "L1", ApplicationID: testApp.ID, Data: models.Payload{{Key: "a", Value: "1"}}}))
	for _, system := range []string{"crm", "tracking", "mailer"} {
		require.NoError(t, f.repo.UpsertRequest(ctx, &models.Request{LeadID: "L1", System: system, Status: models.StatusSuccess}))
	}

	// a form body: the URL carries no paging, the verified parameters do
	body := params.Params{{Key: "lead_id", Value: "L1"}, {Key: "limit", Value: "1"}, {Key: "offset", Value: "1"}}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/requests", strings.NewReader(body.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	f.handler.ListRequests(w, authed(r, body))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get(httputil.HeaderPaginationTotal))
	assert.Equal(t, "3", w.Header().Get(httputil.HeaderPaginationPages))
	assert.Equal(t, "1", w.Header().Get(httputil.HeaderPaginationPage))
	var reqs []models.Request
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reqs))
	assert.Len(t, reqs, 1)
}

// ============================================================================
// Admin
// ============================================================================

func newAdminHandler() (*AdminHandler, *audit.Logger) {
	repo := repository.NewInMemoryRepository()
	auditLog := audit.NewLogger("k", logging.Discard())
	return NewAdminHandler(service.NewApplicationService(repo, auditLog), logging.Discard()), auditLog
}

func TestAdmin_CreateRotateList(t *testing.T) {
	h, auditLog := newAdminHandler()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/v1/applications", h.CreateApplication)
	mux.HandleFunc("POST /admin/v1/applications/{client_id}/rotate", h.RotateApplication)
	mux.HandleFunc("GET /admin/v1/applications", h.ListApplications)

	r := httptest.NewRequest(http.MethodPost, "/admin/v1/applications", strings.NewReader(`{"name":"landing"}`))
	r.Header.Set("X-Actor", "ops")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	var app models.Application
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &app))
	assert.Len(t, app.ClientSecret, 32)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/v1/applications/"+app.ClientID+"/rotate", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var rotated models.Application
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rotated))
	assert.NotEqual(t, app.ClientID, rotated.ClientID)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/v1/applications/"+app.ClientID+"/rotate", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/v1/applications", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var apps []models.Application
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apps))
	require.Len(t, apps, 1)
	assert.Empty(t, apps[0].ClientSecret)

	entries := auditLog.Recent()
	require.NotEmpty(t, entries)
	assert.Equal(t, "ops", entries[0].Actor)
}

func TestAdmin_CreateValidation(t *testing.T) {
	h, _ := newAdminHandler()

	w := httptest.NewRecorder()
	h.CreateApplication(w, httptest.NewRequest(http.MethodPost, "/admin/v1/applications", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.CreateApplication(w, httptest.NewRequest(http.MethodPost, "/admin/v1/applications", strings.NewReader(`{"name":""}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ============================================================================
// Tracking
// ============================================================================

type fakeTracker struct {
	tracked   bool
	event     string
	data      []string
	resp      *tracking.TrackerResponse
	err       error
	statusOK  bool
	statusErr error
	orderID   string
}

func (f *fakeTracker) Track(context.Context) bool { return f.tracked }

func (f *fakeTracker) SendEvent(_ context.Context, eventName, _, _ string, data ...string) (*tracking.TrackerResponse, error) {
	f.event = eventName
	f.data = data
	return f.resp, f.err
}

func (f *fakeTracker) SetTransactionStatus(_ context.Context, orderID, _ string) (bool, error) {
	f.orderID = orderID
	return f.statusOK, f.statusErr
}

func TestTracking_SendEvent(t *testing.T) {
	tr := &fakeTracker{resp: &tracking.TrackerResponse{Status: "ok"}}
	h := NewTrackingHandler(tr, logging.Discard())

	p := params.Params{
		{Key: "event", Value: "sale"},
		{Key: "data1", Value: "a"},
		{Key: "data2", Value: "b"},
		{Key: "data4", Value: "skipped: data3 missing"},
	}
	w := httptest.NewRecorder()
	h.SendEvent(w, authed(httptest.NewRequest(http.MethodPost, "/api/v1/tracking/events", nil), p))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sale", tr.event)
	assert.Equal(t, []string{"a", "b"}, tr.data)
}

func TestTracking_SendEventOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		tracker *fakeTracker
		params  params.Params
		want    int
	}{
		{"missing event", &fakeTracker{}, nil, http.StatusBadRequest},
		{"rejected", &fakeTracker{resp: &tracking.TrackerResponse{Status: "error", Message: "unknown product"}}, params.Params{{Key: "event", Value: "sale"}}, http.StatusUnprocessableEntity},
		{"down", &fakeTracker{err: errors.New("dial tcp: refused")}, params.Params{{Key: "event", Value: "sale"}}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewTrackingHandler(tt.tracker, logging.Discard()).SendEvent(w, authed(httptest.NewRequest(http.MethodPost, "/", nil), tt.params))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestTracking_SetTransactionStatus(t *testing.T) {
	tr := &fakeTracker{statusOK: true}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/tracking/transactions/{order_id}", NewTrackingHandler(tr, logging.Discard()).SetTransactionStatus)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, authed(httptest.NewRequest(http.MethodPost, "/api/v1/tracking/transactions/ORD-9", nil), params.Params{{Key: "status", Value: "approved"}}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ORD-9", tr.orderID)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	tr.statusErr = tracking.ErrWrongCredentials
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, authed(httptest.NewRequest(http.MethodPost, "/api/v1/tracking/transactions/ORD-9", nil), params.Params{{Key: "status", Value: "approved"}}))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, authed(httptest.NewRequest(http.MethodPost, "/api/v1/tracking/transactions/ORD-9", nil), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTracking_Click(t *testing.T) {
	w := httptest.NewRecorder()
	NewTrackingHandler(&fakeTracker{tracked: true}, logging.Discard()).Click(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}

// ============================================================================
// Health
// ============================================================================

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	w := httptest.NewRecorder()
	NewHealthHandler("1.0.0", map[string]Checker{"database": ok}).Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"1.0.0","components":{"database":"ok"}}`, w.Body.String())

	w = httptest.NewRecorder()
	NewHealthHandler("1.0.0", map[string]Checker{"database": ok, "redis": down}).Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
