package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leadgate/leadgate/common/signing"
)

// GatewayClient sends signed requests on behalf of one application.
type GatewayClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
}

func NewGatewayClient(baseURL, clientID, clientSecret string) *GatewayClient {
	return &GatewayClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       newHTTPClient(),
	}
}

// BatchLead is one entry of a batch submission.
type BatchLead struct {
	Data    map[string]string `json:"data"`
	Exclude []string          `json:"exclude,omitempty"`
}

// Request is a delivery record as reported by the gateway.
type Request struct {
	LeadID    string    `json:"lead_id"`
	System    string    `json:"system"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lead is a stored lead as reported by the gateway.
type Lead struct {
	ID              string          `json:"id"`
	ApplicationID   string          `json:"application_id"`
	Data            json.RawMessage `json:"data"`
	ExcludedDrivers []string        `json:"excluded_drivers,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Signed returns the encoded, signed form of params.
func (c *GatewayClient) Signed(params []signing.Param) url.Values {
	return Sign(c.clientID, c.clientSecret, params)
}

func (c *GatewayClient) postForm(ctx context.Context, path string, params []signing.Param, out any) error {
	form := c.Signed(params).Encode()
	req, err := newRequest(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *GatewayClient) get(ctx context.Context, path string, params []signing.Param, out any) error {
	req, err := newRequest(ctx, http.MethodGet, c.baseURL+path+"?"+c.Signed(params).Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// SubmitLead posts one lead and returns its id.
func (c *GatewayClient) SubmitLead(ctx context.Context, fields []signing.Param) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, "/api/v1/leads", fields, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// SubmitBatch posts leads as one pack and returns their ids in order.
func (c *GatewayClient) SubmitBatch(ctx context.Context, leads []BatchLead) ([]string, error) {
	raw, err := json.Marshal(leads)
	if err != nil {
		return nil, err
	}
	var out struct {
		IDs []string `json:"ids"`
	}
	params := []signing.Param{{Key: "leads", Value: string(raw)}}
	if err := c.postForm(ctx, "/api/v1/leads/batch", params, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

// GetLead fetches one of the application's leads.
func (c *GatewayClient) GetLead(ctx context.Context, id string) (*Lead, error) {
	var lead Lead
	if err := c.get(ctx, "/api/v1/leads/"+url.PathEscape(id), nil, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// Requests lists delivery records for leadID, or for every lead when empty.
func (c *GatewayClient) Requests(ctx context.Context, leadID string) ([]Request, error) {
	var params []signing.Param
	if leadID != "" {
		params = append(params, signing.Param{Key: "lead_id", Value: leadID})
	}
	var out []Request
	if err := c.get(ctx, "/api/v1/requests", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}
