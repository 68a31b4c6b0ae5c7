// Package webhook posts domain events to HTTP endpoints, for example a
// parent or classroom dashboard following a child's progress.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"wastewise/core"
)

// Sink posts domain events to configured HTTP endpoints.
// It is synchronous; run it behind an async event bus to keep scans fast.
type Sink struct {
	client    *http.Client
	endpoints []string
	types     map[core.EventType]struct{}
	secret    string
	log       *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTypes limits delivery to the given event types.
func WithTypes(types ...core.EventType) Option {
	return func(s *Sink) {
		if len(types) == 0 {
			return
		}
		s.types = make(map[core.EventType]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
}

// WithSecret is sent as X-WasteWise-Token so receivers can authenticate.
func WithSecret(secret string) Option {
	return func(s *Sink) { s.secret = secret }
}

// WithLogger sets the logger for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// OnEvent posts the event JSON to all endpoints. Its signature matches an
// event bus handler. Failures are logged and never returned to the caller.
func (s *Sink) OnEvent(ctx context.Context, e core.Event) {
	if len(s.endpoints) == 0 {
		return
	}
	if s.types != nil {
		if _, ok := s.types[e.Type]; !ok {
			return
		}
	}
	body, err := json.Marshal(e)
	if err != nil {
		s.log.Error("webhook encode failed", "event", e.ID, "error", err)
		return
	}
	for _, ep := range s.endpoints {
		if err := s.post(ctx, ep, e.Type, body); err != nil {
			s.log.Warn("webhook delivery failed", "endpoint", ep, "event", e.ID, "type", e.Type, "error", err)
		}
	}
}

func (s *Sink) post(ctx context.Context, endpoint string, typ core.EventType, body []byte) error {
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-WasteWise-Event", string(typ))
	if s.secret != "" {
		req.Header.Set("X-WasteWise-Token", s.secret)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
