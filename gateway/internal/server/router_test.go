package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/common/middleware"
	"github.com/leadgate/leadgate/common/signing"
	"github.com/leadgate/leadgate/gateway/internal/dispatch"
	"github.com/leadgate/leadgate/gateway/internal/drivers"
	"github.com/leadgate/leadgate/gateway/internal/events"
	"github.com/leadgate/leadgate/gateway/internal/feed"
	"github.com/leadgate/leadgate/gateway/internal/handlers"
	gatemw "github.com/leadgate/leadgate/gateway/internal/middleware"
	"github.com/leadgate/leadgate/gateway/internal/models"
	"github.com/leadgate/leadgate/gateway/internal/params"
	"github.com/leadgate/leadgate/gateway/internal/repository"
	"github.com/leadgate/leadgate/gateway/internal/service"
	"github.com/leadgate/leadgate/gateway/internal/status"
)

const adminToken = "admin-secret"

// acceptingDriver accepts leads whose name is not "reject".
type acceptingDriver struct{ name string }

func (d acceptingDriver) Name() string { return d.name }

func (d acceptingDriver) SendLead(_ context.Context, p models.Payload) drivers.Result {
	if v, _ := p.Get("name"); v == "reject" {
		return drivers.Rejected("rejected by remote")
	}
	return drivers.Success("accepted")
}

type stack struct {
	handler http.Handler
	repo    *repository.InMemoryRepository
	app     *models.Application
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := logging.Discard()
	repo := repository.NewInMemoryRepository()
	bus := events.NewBus(logger)

	reg := drivers.NewRegistry()
	require.NoError(t, reg.Register(acceptingDriver{name: "crm-x"}))
	dispatch.Register(bus, reg, dispatch.AllOf(dispatch.SkipExcluded, dispatch.SkipDelivered(repo)), logger)
	status.NewStore(repo, logger).Register(bus)

	apps := service.NewApplicationService(repo, nil)
	app, err := apps.Create(context.Background(), "landing", service.Actor{Name: "test"})
	require.NoError(t, err)

	h := NewRouter(Deps{
		Leads:      handlers.NewLeadHandler(service.NewLeadService(repo, repo, bus, logger), logger),
		Admin:      handlers.NewAdminHandler(apps, logger),
		Health:     handlers.NewHealthHandler("test", nil),
		Feed:       feed.NewHub(feed.Config{}, logger),
		Gate:       gatemw.NewGate(repo, 0, logger),
		AdminToken: adminToken,
		Logger:     logger,
	})
	return &stack{handler: h, repo: repo, app: app}
}

func (s *stack) signed(method, path string, p params.Params) *http.Request {
	p = append(params.Params{{Key: gatemw.ParamToken, Value: s.app.ClientID}}, p...)
	sig := signing.NewSigner(s.app.ClientSecret).Sign(p)
	body := append(p, signing.Param{Key: gatemw.ParamSignature, Value: sig}).Encode()

	if method == http.MethodGet || method == http.MethodDelete {
		return httptest.NewRequest(method, path+"?"+body, nil)
	}
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func (s *stack) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func TestRouter_SubmitLeadRecordsOutcome(t *testing.T) {
	s := newStack(t)

	w := s.do(s.signed(http.MethodPost, "/api/v1/leads", params.Params{{Key: "name", Value: "Ann"}}))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	req, err := s.repo.GetRequest(context.Background(), body["id"], "crm-x")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, req.Status)
	assert.Equal(t, "accepted", req.Message)

	lead, err := s.repo.GetLead(context.Background(), body["id"])
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, lead.Data.Keys(), "token and sig are not part of the payload")
}

func TestRouter_BatchHonoursExclusions(t *testing.T) {
	s := newStack(t)
	raw := `[{"data":{"name":"Ann"}},{"data":{"name":"Bob"},"exclude":["crm-x"]},{"data":{"name":"reject"}}]`

	w := s.do(s.signed(http.MethodPost, "/api/v1/leads/batch", params.Params{{Key: "leads", Value: raw}}))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var body map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	ids := body["ids"]
	require.Len(t, ids, 3)

	ctx := context.Background()
	first, err := s.repo.GetRequest(ctx, ids[0], "crm-x")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, first.Status)

	_, err = s.repo.GetRequest(ctx, ids[1], "crm-x")
	assert.ErrorIs(t, err, repository.ErrRequestNotFound)

	third, err := s.repo.GetRequest(ctx, ids[2], "crm-x")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, third.Status)
}

func TestRouter_GateRejections(t *testing.T) {
	s := newStack(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := s.signed(http.MethodGet, "/api/v1/leads", nil)
	r.URL.RawQuery = strings.Replace(r.URL.RawQuery, "token=", "token=x", 1)
	assert.Equal(t, http.StatusUnauthorized, s.do(r).Code)

	r = s.signed(http.MethodGet, "/api/v1/leads", params.Params{{Key: "limit", Value: "5"}})
	r.URL.RawQuery = strings.Replace(r.URL.RawQuery, "limit=5", "limit=6", 1)
	assert.Equal(t, http.StatusBadRequest, s.do(r).Code)
}

func TestRouter_RequestsListing(t *testing.T) {
	s := newStack(t)
	require.Equal(t, http.StatusAccepted, s.do(s.signed(http.MethodPost, "/api/v1/leads", params.Params{{Key: "name", Value: "reject"}})).Code)

	w := s.do(s.signed(http.MethodGet, "/api/v1/requests", params.Params{{Key: "status", Value: "failed"}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("x-pagination-total"))
}

func TestRouter_AdminEndpoints(t *testing.T) {
	s := newStack(t)

	r := httptest.NewRequest(http.MethodPost, "/admin/v1/applications", strings.NewReader(`{"name":"partner"}`))
	assert.Equal(t, http.StatusUnauthorized, s.do(r).Code)

	r = httptest.NewRequest(http.MethodPost, "/admin/v1/applications", strings.NewReader(`{"name":"partner"}`))
	r.Header.Set("Authorization", "Bearer "+adminToken)
	assert.Equal(t, http.StatusCreated, s.do(r).Code)

	r = httptest.NewRequest(http.MethodGet, "/admin/v1/feed", nil)
	assert.Equal(t, http.StatusUnauthorized, s.do(r).Code)
}

func TestRouter_PublicEndpoints(t *testing.T) {
	s := newStack(t)
	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)

	w := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "leadgate_")
}
