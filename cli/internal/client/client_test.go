package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadgate/leadgate/common/signing"
)

func verify(t *testing.T, values url.Values, secret string) {
	t.Helper()
	var params []signing.Param
	for k, vs := range values {
		if k == ParamSignature {
			continue
		}
		for _, v := range vs {
			params = append(params, signing.Param{Key: k, Value: v})
		}
	}
	assert.True(t, signing.NewSigner(secret).Verify(params, values.Get(ParamSignature)), "signature must verify")
}

func TestSign_IncludesTokenAndSignature(t *testing.T) {
	values := Sign("client-1", "s3cret", []signing.Param{{Key: "name", Value: "Ada"}})

	assert.Equal(t, "client-1", values.Get(ParamToken))
	assert.Equal(t, "Ada", values.Get("name"))
	assert.Len(t, values.Get(ParamSignature), 64)
	verify(t, values, "s3cret")
}

func TestSubmitLead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/leads", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ada@example.com", r.PostForm.Get("email"))
		verify(t, r.PostForm, "s3cret")

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"id": "lead-1"})
	}))
	defer server.Close()

	c := NewGatewayClient(server.URL+"/", "client-1", "s3cret")
	id, err := c.SubmitLead(context.Background(), []signing.Param{{Key: "email", Value: "ada@example.com"}})

	require.NoError(t, err)
	assert.Equal(t, "lead-1", id)
}

func TestSubmitBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/leads/batch", r.URL.Path)
		require.NoError(t, r.ParseForm())

		var leads []BatchLead
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("leads")), &leads))
		require.Len(t, leads, 2)
		assert.Equal(t, []string{"crm"}, leads[1].Exclude)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string][]string{"ids": {"a", "b"}})
	}))
	defer server.Close()

	c := NewGatewayClient(server.URL, "client-1", "s3cret")
	ids, err := c.SubmitBatch(context.Background(), []BatchLead{
		{Data: map[string]string{"name": "Ada"}},
		{Data: map[string]string{"name": "Grace"}, Exclude: []string{"crm"}},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestRequests_SignsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "lead-1", r.URL.Query().Get("lead_id"))
		verify(t, r.URL.Query(), "s3cret")

		json.NewEncoder(w).Encode([]Request{{LeadID: "lead-1", System: "crm", Status: "success"}})
	}))
	defer server.Close()

	reqs, err := NewGatewayClient(server.URL, "client-1", "s3cret").Requests(context.Background(), "lead-1")

	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "success", reqs[0].Status)
}

func TestGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid signature"})
	}))
	defer server.Close()

	_, err := NewGatewayClient(server.URL, "client-1", "wrong").SubmitLead(context.Background(), nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid signature", apiErr.Message)
}

func TestAdminClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
		assert.Equal(t, "ops", r.Header.Get("X-Actor"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/admin/v1/applications":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "landing", body["name"])
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(Application{Name: "landing", ClientID: "c1", ClientSecret: "s1"})
		case r.Method == http.MethodPost && r.URL.Path == "/admin/v1/applications/c1/rotate":
			json.NewEncoder(w).Encode(Application{Name: "landing", ClientID: "c2", ClientSecret: "s2"})
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode([]Application{{Name: "landing", ClientID: "c2"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewAdminClient(server.URL, "admin-token", "ops")
	ctx := context.Background()

	app, err := c.CreateApplication(ctx, "landing")
	require.NoError(t, err)
	assert.Equal(t, "s1", app.ClientSecret)

	rotated, err := c.RotateApplication(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c2", rotated.ClientID)

	apps, err := c.ListApplications(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Empty(t, apps[0].ClientSecret)
}

func TestAdminClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewAdminClient(server.URL, "bad", "").ListApplications(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "forbidden", apiErr.Message)
}
