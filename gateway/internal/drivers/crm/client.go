// Package crm delivers leads to a Bitrix24-style CRM through its inbound webhook.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leadgate/leadgate/gateway/internal/models"
)

// DriverName is the dispatch and status key of the CRM driver.
const DriverName = "crm"

const addLeadMethod = "crm.lead.add.json"

// queryLimitExceeded is the error code the CRM returns when throttling a webhook.
const queryLimitExceeded = "QUERY_LIMIT_EXCEEDED"

// Config configures the webhook client.
type Config struct {
	// WebhookURL is the inbound webhook base, e.g. https://acme.bitrix24.com/rest/1/abc123
	WebhookURL string
	Timeout    time.Duration
}

// Client implements drivers.Sender. It is not safe for concurrent use on its
// own; wrap it with drivers.Adapt.
type Client struct {
	cfg        Config
	httpClient *http.Client

	success bool
	message string
}

type addLeadResponse struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// New creates a CRM client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// SendLead posts the payload as fields[KEY]=value. It returns an error when
// the call did not complete or the CRM asked to come back later; remote
// rejections are reported through IsSuccess and Messages.
func (c *Client) SendLead(ctx context.Context, payload models.Payload) error {
	c.success = false
	c.message = ""

	form := url.Values{}
	for _, f := range payload {
		form.Add("fields["+strings.ToUpper(f.Key)+"]", f.Value)
	}

	endpoint := strings.TrimRight(c.cfg.WebhookURL, "/") + "/" + addLeadMethod
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read crm response: %w", err)
	}
	if transientStatus(resp.StatusCode) {
		return fmt.Errorf("crm unavailable: status %d", resp.StatusCode)
	}

	var parsed addLeadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= http.StatusMultipleChoices {
			return fmt.Errorf("crm unavailable: status %d with unreadable body", resp.StatusCode)
		}
		c.message = fmt.Sprintf("unexpected crm response (status %d)", resp.StatusCode)
		return nil
	}

	if parsed.Error == queryLimitExceeded {
		return fmt.Errorf("crm rate limited: %s", parsed.Error)
	}
	if parsed.Error != "" {
		c.message = parsed.Error
		if parsed.ErrorDescription != "" {
			c.message = parsed.ErrorDescription
		}
		return nil
	}
	if len(parsed.Result) == 0 || string(parsed.Result) == "null" || string(parsed.Result) == "false" {
		c.message = "crm returned no lead id"
		return nil
	}

	c.success = true
	c.message = "lead " + strings.Trim(string(parsed.Result), `"`) + " created"
	return nil
}

// transientStatus reports replies worth retrying later: timeouts, throttling
// and server errors.
func transientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

// Messages describes the outcome of the last SendLead call.
func (c *Client) Messages() string { return c.message }

// IsSuccess reports whether the last SendLead call was accepted.
func (c *Client) IsSuccess() bool { return c.success }
