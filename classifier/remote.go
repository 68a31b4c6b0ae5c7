package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Remote posts the image to an HTTP model endpoint. The endpoint answers
// with JSON {"label": "...", "confidence": 0.93}.
type Remote struct {
	endpoint string
	client   *http.Client
	header   http.Header
}

// RemoteOption configures a Remote classifier.
type RemoteOption func(*Remote)

// WithHTTPClient overrides the HTTP client (defaults to a 10s timeout).
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) {
		if c != nil {
			r.client = c
		}
	}
}

// WithAuthToken sends Authorization: Bearer token.
func WithAuthToken(token string) RemoteOption {
	return func(r *Remote) {
		if strings.TrimSpace(token) != "" {
			r.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// NewRemote creates a remote model adapter.
func NewRemote(endpoint string, opts ...RemoteOption) (*Remote, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("remote classifier endpoint is required")
	}
	r := &Remote{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		header:   make(http.Header),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

func (r *Remote) Classify(ctx context.Context, image []byte) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(image))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")
	for k, vals := range r.header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("%w: model returned status %d", ErrUnavailable, resp.StatusCode)
	}
	var out Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode model response: %w", err)
	}
	return out, nil
}
