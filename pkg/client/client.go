// Package client is the Go SDK for the FireWatch report lifecycle engine.
// It wraps the engine's REST API: report intake, severity overrides, routing,
// the info-request cycle, and the audit chain endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Sentinel errors mapped from the engine's error codes.
var (
	ErrNotFound = errors.New("report not found")
	// ErrConflict covers both illegal transitions and optimistic-concurrency
	// losses; re-read the report and retry if the transition still applies.
	ErrConflict   = errors.New("transition conflict")
	ErrValidation = errors.New("validation failed")
)

// Report mirrors the engine's report representation.
type Report struct {
	ID              string         `json:"id"`
	Kind            string         `json:"kind"`
	Location        Location       `json:"location"`
	Description     string         `json:"description"`
	MediaRefs       []string       `json:"media_refs,omitempty"`
	ReporterID      string         `json:"reporter_id"`
	Severity        string         `json:"severity"`
	Confidence      *float64       `json:"confidence,omitempty"`
	RoutedTo        string         `json:"routed_to"`
	Status          string         `json:"status"`
	ClassifierState string         `json:"classifier_state"`
	History         []HistoryEntry `json:"history"`
	Deliveries      []Delivery     `json:"deliveries,omitempty"`
	Version         int            `json:"version"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Location is a coordinate plus a free-text description.
type Location struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Description string  `json:"description"`
}

// HistoryEntry is one status audit record on a report.
type HistoryEntry struct {
	Status string    `json:"status"`
	Actor  string    `json:"actor"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// Delivery is the notification outcome for one channel/event pair.
type Delivery struct {
	Channel   string    `json:"channel"`
	Event     string    `json:"event"`
	State     string    `json:"state"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubmitRequest is the intake payload for a new report.
type SubmitRequest struct {
	Kind        string   `json:"kind"`
	Location    Location `json:"location"`
	Description string   `json:"description"`
	MediaRefs   []string `json:"media_refs,omitempty"`
	ReporterID  string   `json:"reporter_id"`
}

// ListFilter holds optional query filters for ListReports.
type ListFilter struct {
	Kind       string
	Search     string
	Severities []string
	Statuses   []string
	Barangays  []string
}

// AuditOverview is the audit chain summary.
type AuditOverview struct {
	Entries int    `json:"entries"`
	Root    string `json:"root"`
}

// Client talks to a FireWatch engine instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	operatorID string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithOperatorID attaches the operator identity header to every request.
// Required for operator actions (severity, route, resolve, reject, sessions).
func WithOperatorID(id string) Option {
	return func(c *Client) { c.operatorID = id }
}

// WithTimeout sets the per-request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client for the engine at baseURL.
//
//	c := client.New("http://localhost:8080", client.WithOperatorID("op-glenda"))
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SubmitReport posts a new citizen report.
func (c *Client) SubmitReport(ctx context.Context, req SubmitRequest) (*Report, error) {
	return c.reportCall(ctx, http.MethodPost, "/api/v1/reports", req)
}

// GetReport fetches a report by ID.
func (c *Client) GetReport(ctx context.Context, id string) (*Report, error) {
	return c.reportCall(ctx, http.MethodGet, "/api/v1/reports/"+id, nil)
}

// ListReports returns reports matching the filter, newest first.
func (c *Client) ListReports(ctx context.Context, f ListFilter) ([]Report, error) {
	q := url.Values{}
	if f.Kind != "" {
		q.Set("kind", f.Kind)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	for _, s := range f.Severities {
		q.Add("severity", s)
	}
	for _, s := range f.Statuses {
		q.Add("status", s)
	}
	for _, b := range f.Barangays {
		q.Add("barangay", b)
	}

	path := "/api/v1/reports"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Reports []Report `json:"reports"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapper.Reports, nil
}

// OverrideSeverity sets the report's severity manually.
func (c *Client) OverrideSeverity(ctx context.Context, id, label, reason string) (*Report, error) {
	return c.reportCall(ctx, http.MethodPost, "/api/v1/reports/"+id+"/severity",
		map[string]string{"label": label, "reason": reason})
}

// Route dispatches the report to a responder class. reason is the override
// reason code, required only when departing from the recommendation.
func (c *Client) Route(ctx context.Context, id, target, reason string) (*Report, error) {
	return c.reportCall(ctx, http.MethodPost, "/api/v1/reports/"+id+"/route",
		map[string]string{"target": target, "reason": reason})
}

// RequestInfo asks the reporter for additional details.
func (c *Client) RequestInfo(ctx context.Context, id string) (*Report, error) {
	return c.reportCall(ctx, http.MethodPost, "/api/v1/reports/"+id+"/request-info", nil)
}

// Supplement submits the reporter's additional details.
func (c *Client) Supplement(ctx context.Context, id, note string) (*Report, error) {
	return c.reportCall(ctx, http.MethodPost, "/api/v1/reports/"+id+"/supplement",
		map[string]string{"note": note})
}

// Resolve closes a dispatched report as handled.
func (c *Client) Resolve(ctx context.Context, id string) (*Report, error) {
	return c.reportCall(ctx, http.MethodPost, "/api/v1/reports/"+id+"/resolve", nil)
}

// Reject closes a report as a false alarm.
func (c *Client) Reject(ctx context.Context, id, reason string) (*Report, error) {
	return c.reportCall(ctx, http.MethodPost, "/api/v1/reports/"+id+"/reject",
		map[string]string{"reason": reason})
}

// AmendLocation corrects a pending report's location.
func (c *Client) AmendLocation(ctx context.Context, id string, loc Location) (*Report, error) {
	return c.reportCall(ctx, http.MethodPost, "/api/v1/reports/"+id+"/location", loc)
}

// AuditChain fetches the audit chain length and root hash.
func (c *Client) AuditChain(ctx context.Context) (*AuditOverview, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/audit", nil)
	if err != nil {
		return nil, err
	}
	var ov AuditOverview
	if err := json.Unmarshal(body, &ov); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &ov, nil
}

// VerifyAudit walks the audit chain and reports whether it is intact.
func (c *Client) VerifyAudit(ctx context.Context) (bool, string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/audit/verify", nil)
	if err != nil {
		return false, "", err
	}
	var resp struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, "", fmt.Errorf("decode response: %w", err)
	}
	return resp.Valid, resp.Error, nil
}

// reportCall makes a request whose success response is a single report.
func (c *Client) reportCall(ctx context.Context, method, path string, payload any) (*Report, error) {
	body, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// do executes an HTTP request and maps the engine's error codes to sentinel
// errors.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.operatorID != "" {
		req.Header.Set("X-Operator-ID", c.operatorID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 300 {
		return body, nil
	}

	var apiErr struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, apiErr.Error)
	case http.StatusConflict:
		return nil, fmt.Errorf("%w (%s): %s", ErrConflict, apiErr.Code, apiErr.Error)
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrValidation, apiErr.Error)
	default:
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}
}
