// Package client talks to the leadgate gateway: signed application calls
// and admin calls authenticated with a bearer token.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leadgate/leadgate/common/signing"
)

// Signature parameter names understood by the gateway.
const (
	ParamToken     = "token"
	ParamSignature = "sig"
)

// APIError is a non-2xx gateway reply.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Sign returns params plus the token and its signature, ready to be sent as
// a query string or form body.
func Sign(clientID, clientSecret string, params []signing.Param) url.Values {
	signed := make([]signing.Param, 0, len(params)+1)
	signed = append(signed, params...)
	signed = append(signed, signing.Param{Key: ParamToken, Value: clientID})

	values := url.Values{}
	for _, p := range signed {
		values.Add(p.Key, p.Value)
	}
	values.Set(ParamSignature, signing.NewSigner(clientSecret).Sign(signed))
	return values
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
