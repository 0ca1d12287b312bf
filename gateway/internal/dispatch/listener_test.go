package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/gateway/internal/drivers"
	"github.com/leadgate/leadgate/gateway/internal/events"
	"github.com/leadgate/leadgate/gateway/internal/models"
	"github.com/leadgate/leadgate/gateway/internal/repository"
	"github.com/leadgate/leadgate/gateway/internal/status"
)

// scriptedDriver returns results per lead payload "name" field.
type scriptedDriver struct {
	name    string
	results map[string]drivers.Result
	panics  map[string]bool
	seen    []string
}

func (s *scriptedDriver) Name() string { return s.name }

func (s *scriptedDriver) SendLead(_ context.Context, p models.Payload) drivers.Result {
	key, _ := p.Get("name")
	s.seen = append(s.seen, key)
	if s.panics[key] {
		panic("adapter exploded")
	}
	if r, ok := s.results[key]; ok {
		return r
	}
	return drivers.Success("ok")
}

type recorder struct {
	responses []events.RequestResponse
}

func setup(t *testing.T, d drivers.Driver, eligibility Eligibility) (*events.Bus, *recorder) {
	t.Helper()
	bus := events.NewBus(logging.Discard())
	reg := drivers.NewRegistry()
	require.NoError(t, reg.Register(d))
	Register(bus, reg, eligibility, logging.Discard())

	rec := &recorder{}
	bus.Subscribe(events.TypeRequestResponse, "recorder", events.On(func(_ context.Context, ev events.RequestResponse) error {
		rec.responses = append(rec.responses, ev)
		return nil
	}))
	return bus, rec
}

func payload(name string) models.Payload {
	return models.Payload{{Key: "name", Value: name}}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, models.StatusSuccess, Classify(drivers.KindSuccess))
	assert.Equal(t, models.StatusFailed, Classify(drivers.KindRejected))
	assert.Equal(t, models.StatusRetry, Classify(drivers.KindTransient))
}

func TestLeadListener_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		result  drivers.Result
		panics  bool
		status  models.Status
		message any
	}{
		{"accepted", drivers.Success("lead 1 created"), false, models.StatusSuccess, "lead 1 created"},
		{"rejected", drivers.Rejected("duplicate"), false, models.StatusFailed, "duplicate"},
		{"raised", drivers.Transient("connection reset"), false, models.StatusRetry, "connection reset"},
		{"panicked", drivers.Result{}, true, models.StatusRetry, "driver panic: adapter exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &scriptedDriver{
				name:    "crm-x",
				results: map[string]drivers.Result{"Ann": tt.result},
				panics:  map[string]bool{"Ann": tt.panics},
			}
			bus, rec := setup(t, d, nil)

			err := bus.Publish(context.Background(), events.TypeNewLead, events.NewLead{ID: "L1", Data: payload("Ann")})
			require.NoError(t, err)

			require.Len(t, rec.responses, 1)
			got := rec.responses[0]
			assert.Equal(t, "L1", got.ID)
			assert.Equal(t, "crm-x", got.System)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.message, got.Response)
			assert.False(t, got.OccurredAt.IsZero())
		})
	}
}

func TestLeadListener_RejectedAndTransientStayDistinct(t *testing.T) {
	d := &scriptedDriver{name: "crm-x", results: map[string]drivers.Result{
		"a": drivers.Rejected("no"),
		"b": drivers.Transient("timeout"),
	}}
	bus, rec := setup(t, d, nil)

	_ = bus.Publish(context.Background(), events.TypeNewLead, events.NewLead{ID: "1", Data: payload("a")})
	_ = bus.Publish(context.Background(), events.TypeNewLead, events.NewLead{ID: "2", Data: payload("b")})

	require.Len(t, rec.responses, 2)
	assert.Equal(t, models.StatusFailed, rec.responses[0].Status)
	assert.Equal(t, models.StatusRetry, rec.responses[1].Status)
}

func TestPackListener_SkipsIneligibleLeads(t *testing.T) {
	d := &scriptedDriver{name: "crm-x", results: map[string]drivers.Result{"L1": drivers.Transient("boom")}}
	skipL2 := EligibilityFunc(func(_ context.Context, l *models.Lead, _ string) (bool, error) {
		return l.ID != "L2", nil
	})
	bus, rec := setup(t, d, skipL2)

	err := bus.Publish(context.Background(), events.TypeNewLeadPack, events.NewLeadPack{Leads: []*models.Lead{
		{ID: "L1", Data: payload("L1")},
		{ID: "L2", Data: payload("L2")},
	}})
	require.NoError(t, err)

	require.Len(t, rec.responses, 1)
	assert.Equal(t, "L1", rec.responses[0].ID)
	assert.Equal(t, models.StatusRetry, rec.responses[0].Status)
	assert.Equal(t, []string{"L1"}, d.seen)
}

func TestPackListener_OrderAndIsolation(t *testing.T) {
	d := &scriptedDriver{
		name:    "crm-x",
		results: map[string]drivers.Result{"second": drivers.Rejected("bad phone")},
		panics:  map[string]bool{"first": true},
	}
	bus, rec := setup(t, d, ProcessAll)

	leads := []*models.Lead{
		{ID: "1", Data: payload("first")},
		{ID: "2", Data: payload("second")},
		nil,
		{ID: "3", Data: payload("third")},
	}
	require.NoError(t, bus.Publish(context.Background(), events.TypeNewLeadPack, events.NewLeadPack{Leads: leads}))

	assert.Equal(t, []string{"first", "second", "third"}, d.seen)
	require.Len(t, rec.responses, 3)
	assert.Equal(t, "1", rec.responses[0].ID)
	assert.Equal(t, models.StatusRetry, rec.responses[0].Status)
	assert.Equal(t, models.StatusFailed, rec.responses[1].Status)
	assert.Equal(t, models.StatusSuccess, rec.responses[2].Status)
}

func TestPackListener_EligibilityErrorDelivers(t *testing.T) {
	d := &scriptedDriver{name: "crm-x"}
	broken := EligibilityFunc(func(context.Context, *models.Lead, string) (bool, error) {
		return false, errors.New("db down")
	})
	bus, rec := setup(t, d, broken)

	_ = bus.Publish(context.Background(), events.TypeNewLeadPack, events.NewLeadPack{Leads: []*models.Lead{{ID: "1", Data: payload("x")}}})
	assert.Len(t, rec.responses, 1)
}

func TestRegister_OneListenerPairPerDriver(t *testing.T) {
	bus := events.NewBus(logging.Discard())
	reg := drivers.NewRegistry()
	require.NoError(t, reg.Register(&scriptedDriver{name: "crm"}))
	require.NoError(t, reg.Register(&scriptedDriver{name: "tracking"}))

	Register(bus, reg, ProcessAll, logging.Discard())

	assert.Equal(t, []string{"dispatch.crm", "dispatch.tracking"}, bus.Subscribers(events.TypeNewLead))
	assert.Equal(t, []string{"dispatch-pack.crm", "dispatch-pack.tracking"}, bus.Subscribers(events.TypeNewLeadPack))
}

// A failing driver never prevents delivery to the next one.
func TestRegister_DriverIsolation(t *testing.T) {
	bad := &scriptedDriver{name: "crm", panics: map[string]bool{"Ann": true}}
	good := &scriptedDriver{name: "tracking"}

	bus := events.NewBus(logging.Discard())
	reg := drivers.NewRegistry()
	require.NoError(t, reg.Register(bad))
	require.NoError(t, reg.Register(good))
	Register(bus, reg, ProcessAll, logging.Discard())

	repo := repository.NewInMemoryRepository()
	status.NewStore(repo, logging.Discard()).Register(bus)

	require.NoError(t, bus.Publish(context.Background(), events.TypeNewLead, events.NewLead{ID: "L", Data: payload("Ann")}))

	crm, err := repo.GetRequest(context.Background(), "L", "crm")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRetry, crm.Status)
	tracking, err := repo.GetRequest(context.Background(), "L", "tracking")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, tracking.Status)
}
