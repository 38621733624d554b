package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RemoteClassifier calls an external model endpoint over HTTP. Any transport
// error, timeout, or malformed answer maps to ErrUnavailable so the lifecycle
// falls back to the manual path instead of blocking intake.
type RemoteClassifier struct {
	endpoint   string
	httpClient *http.Client
}

// NewRemoteClassifier creates a RemoteClassifier for the given endpoint.
// timeout bounds the whole request; zero means DefaultTimeout.
func NewRemoteClassifier(endpoint string, timeout time.Duration) *RemoteClassifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RemoteClassifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Classify implements Classifier.
func (c *RemoteClassifier) Classify(ctx context.Context, in Input) (Result, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return Result{}, fmt.Errorf("marshal classify input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("classifier endpoint %s: %v: %w", c.endpoint, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("classifier endpoint returned HTTP %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode classifier response: %v: %w", err, ErrUnavailable)
	}
	if !out.Label.Classified() {
		return Result{}, fmt.Errorf("classifier returned label %q: %w", out.Label, ErrUnavailable)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return Result{}, fmt.Errorf("classifier returned confidence %v out of range: %w", out.Confidence, ErrUnavailable)
	}
	return out, nil
}
