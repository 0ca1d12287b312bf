// Package tracking delivers leads as sale events to a PartnerBox-style
// affiliate tracker and exposes its click and transaction APIs.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/leadgate/leadgate/gateway/internal/drivers"
	"github.com/leadgate/leadgate/gateway/internal/models"
)

// DriverName is the dispatch and status key of the tracking driver.
const DriverName = "tracking"

// MaxDataFields is the number of positional data fields a sale event carries.
const MaxDataFields = 5

const sessionHeader = "X-Session"

// ErrWrongCredentials is returned when the tracker refuses the login.
var ErrWrongCredentials = errors.New("tracking: wrong credentials")

// Payload keys with a fixed meaning. Every other field is positional data.
const (
	KeyEvent     = "event"
	KeyProductID = "product_id"
	KeyOrderID   = "order_id"
	KeyVisitorID = "visitor_id"
)

// DefaultEvent is the action name used when a lead carries no event key.
const DefaultEvent = "lead"

// Config configures the tracker client.
type Config struct {
	ServerURL string
	SaleURL   string
	Login     string
	Password  string
	AccountID string
	VisitorID string
	Timeout   time.Duration
}

// TrackerResponse is the sale tracker's reply to a registered event.
type TrackerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the tracker accepted the event.
func (r *TrackerResponse) OK() bool {
	return r != nil && r.Status == "ok"
}

// Client talks to the tracker. The session is created on first use and
// reused afterwards. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu      sync.Mutex
	session string
}

// New creates a tracker client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name implements drivers.Driver.
func (c *Client) Name() string { return DriverName }

// SendLead registers the lead as a sale event. Reserved keys select the
// event name, product, order and visitor; the remaining values, in order,
// become data1..data5.
func (c *Client) SendLead(ctx context.Context, payload models.Payload) drivers.Result {
	event, ok := payload.Get(KeyEvent)
	if !ok || event == "" {
		event = DefaultEvent
	}
	productID, _ := payload.Get(KeyProductID)
	orderID, _ := payload.Get(KeyOrderID)
	visitorID, _ := payload.Get(KeyVisitorID)

	rest := payload.Without(KeyEvent, KeyProductID, KeyOrderID, KeyVisitorID)
	data := make([]string, 0, len(rest))
	for _, f := range rest {
		data = append(data, f.Value)
	}

	resp, err := c.sendEvent(ctx, visitorID, event, productID, orderID, data...)
	if err != nil {
		return drivers.Transient(err.Error())
	}
	if resp.OK() {
		return drivers.Success(resp)
	}
	return drivers.Rejected(resp)
}

// SendEvent registers an action with the sale tracker. At most five data
// fields are sent; extra values are ignored.
func (c *Client) SendEvent(ctx context.Context, eventName, productID, orderID string, data ...string) (*TrackerResponse, error) {
	return c.sendEvent(ctx, "", eventName, productID, orderID, data...)
}

func (c *Client) sendEvent(ctx context.Context, visitorID, eventName, productID, orderID string, data ...string) (*TrackerResponse, error) {
	if visitorID == "" {
		visitorID = c.cfg.VisitorID
	}
	form := url.Values{
		"account_id": {c.cfg.AccountID},
		"visitor_id": {visitorID},
		"action":     {eventName},
		"product_id": {productID},
		"order_id":   {orderID},
	}
	for i := 0; i < len(data) && i < MaxDataFields; i++ {
		form.Set(fmt.Sprintf("data%d", i+1), data[i])
	}

	var out TrackerResponse
	if err := c.post(ctx, c.cfg.SaleURL, "", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Track records a visitor click. Any failure, including login, yields false.
func (c *Client) Track(ctx context.Context) bool {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return false
	}
	form := url.Values{
		"account_id": {c.cfg.AccountID},
		"visitor_id": {c.cfg.VisitorID},
	}
	return c.post(ctx, c.endpoint("/click"), session, form, nil) == nil
}

// SetTransactionStatus finds the transaction for orderID and sets its status.
// It returns an error only when the session cannot be established; every
// other failure yields false.
func (c *Client) SetTransactionStatus(ctx context.Context, orderID, status string) (bool, error) {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return false, err
	}

	var grid struct {
		Rows []struct {
			ID string `json:"id"`
		} `json:"rows"`
	}
	if err := c.get(ctx, c.endpoint("/transactions?orderid="+url.QueryEscape(orderID)), session, &grid); err != nil {
		return false, nil
	}
	if len(grid.Rows) == 0 {
		return false, nil
	}

	var saved struct {
		Success bool `json:"success"`
	}
	form := url.Values{"status": {status}}
	if err := c.post(ctx, c.endpoint("/transactions/"+url.PathEscape(grid.Rows[0].ID)), session, form, &saved); err != nil {
		return false, nil
	}
	return saved.Success, nil
}

func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != "" {
		return c.session, nil
	}

	var out struct {
		Success bool   `json:"success"`
		Session string `json:"session"`
	}
	form := url.Values{"username": {c.cfg.Login}, "password": {c.cfg.Password}}
	if err := c.post(ctx, c.endpoint("/login"), "", form, &out); err != nil {
		return "", fmt.Errorf("tracking login: %w", err)
	}
	if !out.Success || out.Session == "" {
		return "", ErrWrongCredentials
	}
	c.session = out.Session
	return c.session, nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.ServerURL, "/") + path
}

func (c *Client) get(ctx context.Context, endpoint, session string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, session, out)
}

func (c *Client) post(ctx context.Context, endpoint, session string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, session, out)
}

func (c *Client) do(req *http.Request, session string, out any) error {
	req.Header.Set("Accept", "application/json")
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("tracker unavailable: status %d", resp.StatusCode)
	}
	if out == nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("tracker returned status %d", resp.StatusCode)
		}
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read tracker response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode tracker response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
