package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Application is an API consumer as returned by the admin API.
type Application struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AdminClient manages applications through the admin API.
type AdminClient struct {
	baseURL string
	token   string
	actor   string
	client  *http.Client
}

// NewAdminClient returns a client for the admin API. actor is recorded in the
// gateway's audit trail.
func NewAdminClient(baseURL, token, actor string) *AdminClient {
	return &AdminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		actor:   actor,
		client:  newHTTPClient(),
	}
}

func (c *AdminClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return err
		}
		reader = buf
	}

	req, err := newRequest(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.actor != "" {
		req.Header.Set("X-Actor", c.actor)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// CreateApplication registers a new application and returns it with its secret.
func (c *AdminClient) CreateApplication(ctx context.Context, name string) (*Application, error) {
	var app Application
	if err := c.do(ctx, http.MethodPost, "/admin/v1/applications", map[string]string{"name": name}, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// RotateApplication issues a new client id and secret for clientID.
func (c *AdminClient) RotateApplication(ctx context.Context, clientID string) (*Application, error) {
	var app Application
	path := "/admin/v1/applications/" + url.PathEscape(clientID) + "/rotate"
	if err := c.do(ctx, http.MethodPost, path, nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// ListApplications returns every application with secrets redacted.
func (c *AdminClient) ListApplications(ctx context.Context) ([]Application, error) {
	var apps []Application
	if err := c.do(ctx, http.MethodGet, "/admin/v1/applications", nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}
