// Package apiclient is the HTTP client for the storefront backend REST API.
package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marcus/shopsync/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Client is an HTTP client for the storefront backend.
type Client struct {
	BaseURL  string
	DeviceID string
	HTTP     *http.Client
}

// New creates a new backend client.
func New(baseURL, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// syncPaths maps queue categories to their sync endpoints. The notifications
// category has no sync endpoint; those items replay through the push manager.
var syncPaths = map[models.Category]string{
	models.CategoryCart:      "/api/v1/cart/sync",
	models.CategoryAnalytics: "/api/v1/analytics/sync",
	models.CategoryForms:     "/api/v1/forms/sync",
}

// --- Sync types ---

// ItemInput is a single queued item in a sync request.
type ItemInput struct {
	Key       string          `json:"key"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// SyncRequest is the body for the per-category sync endpoints.
type SyncRequest struct {
	DeviceID string      `json:"device_id"`
	Items    []ItemInput `json:"items"`
}

// RejectedItem is a single rejected item in a sync response.
type RejectedItem struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// SyncResponse is the response from a sync request. Items rejected with
// reason "duplicate" were already delivered on an earlier attempt and count
// as acknowledged.
type SyncResponse struct {
	Accepted int            `json:"accepted"`
	Acks     []string       `json:"acks"`
	Rejected []RejectedItem `json:"rejected,omitempty"`
}

// --- Notification types ---

// SubscribeRequest registers push-transport credentials with the backend,
// which assigns the push endpoint for this device.
type SubscribeRequest struct {
	DeviceID    string                  `json:"device_id"`
	UserID      string                  `json:"user_id,omitempty"`
	Keys        models.SubscriptionKeys `json:"keys"`
	VAPIDKey    string                  `json:"vapid_key"`
	Preferences models.Preferences      `json:"preferences"`
}

// SubscribeResponse is the response from a subscribe request.
type SubscribeResponse struct {
	Endpoint string `json:"endpoint"`
}

// SendRequest asks the backend to deliver a rendered notification.
type SendRequest struct {
	Endpoint     string          `json:"endpoint"`
	Notification json.RawMessage `json:"notification"`
}

// PreferencesRequest updates the stored preference flags for a subscription.
type PreferencesRequest struct {
	Endpoint    string             `json:"endpoint"`
	Preferences models.Preferences `json:"preferences"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits the /healthz endpoint to verify backend reachability.
func (c *Client) HealthCheck() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do("GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sync delivers a batch of queued items for one category. Returns an error
// for categories without a sync endpoint.
func (c *Client) Sync(category models.Category, items []ItemInput) (*SyncResponse, error) {
	path, ok := syncPaths[category]
	if !ok {
		return nil, fmt.Errorf("no sync endpoint for category %q", category)
	}
	req := &SyncRequest{DeviceID: c.DeviceID, Items: items}
	var resp SyncResponse
	if err := c.do("POST", path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Subscribe registers a push subscription and returns the assigned endpoint.
func (c *Client) Subscribe(req *SubscribeRequest) (*SubscribeResponse, error) {
	var resp SubscribeResponse
	if err := c.do("POST", "/api/v1/notifications/subscribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Unsubscribe requests backend removal of a subscription by endpoint.
func (c *Client) Unsubscribe(endpoint string) error {
	body := map[string]string{"endpoint": endpoint}
	return c.do("POST", "/api/v1/notifications/unsubscribe", body, nil)
}

// SendNotification requests backend delivery of a rendered notification.
func (c *Client) SendNotification(endpoint string, notification json.RawMessage) error {
	req := &SendRequest{Endpoint: endpoint, Notification: notification}
	return c.do("POST", "/api/v1/notifications/send", req, nil)
}

// UpdatePreferences updates the stored preferences for a subscription.
func (c *Client) UpdatePreferences(endpoint string, prefs models.Preferences) error {
	req := &PreferencesRequest{Endpoint: endpoint, Preferences: prefs}
	return c.do("POST", "/api/v1/notifications/preferences", req, nil)
}

// --- HTTP helpers ---

// apiError is the standard error body from the backend.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// do executes an HTTP request against the backend.
func (c *Client) do(method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
			case http.StatusForbidden:
				return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
			case http.StatusNotFound:
				return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			default:
				return &apiErr
			}
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
