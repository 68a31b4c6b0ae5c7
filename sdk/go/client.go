// Package sdk is a Go client for the WasteWise HTTP and WebSocket API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"wastewise/core"
)

var (
	// ErrNoResult matches a scan the server could not classify.
	ErrNoResult = errors.New("no classification result")
	// ErrScanInProgress matches a scan rejected because another is running.
	ErrScanInProgress = errors.New("scan already in progress")
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the WasteWise HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// Progress fetches the child's progress and level.
func (c *Client) Progress(ctx context.Context) (Progress, error) {
	var p Progress
	err := c.do(ctx, http.MethodGet, "/progress", nil, "", &p)
	return p, err
}

// CategoryProgress returns scans toward the goal for every category.
func (c *Client) CategoryProgress(ctx context.Context) ([]core.CategoryProgress, error) {
	var out []core.CategoryProgress
	err := c.do(ctx, http.MethodGet, "/progress/categories", nil, "", &out)
	return out, err
}

// Scan uploads an image and returns what it earned.
func (c *Client) Scan(ctx context.Context, image []byte) (ScanOutcome, error) {
	var out ScanOutcome
	err := c.do(ctx, http.MethodPost, "/scans", bytes.NewReader(image), "application/octet-stream", &out)
	return out, err
}

// Unlock buys a badge or sticker.
func (c *Client) Unlock(ctx context.Context, kind core.RewardKind, id string) (Progress, error) {
	var p Progress
	path := fmt.Sprintf("/rewards/%s/%s", url.PathEscape(string(kind)), url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, path, nil, "", &p)
	return p, err
}

// AddCoins credits coins and returns the new balance.
func (c *Client) AddCoins(ctx context.Context, amount int64) (int64, error) {
	var body struct {
		Coins int64 `json:"coins"`
	}
	err := c.do(ctx, http.MethodPost, "/progress/coins?amount="+strconv.FormatInt(amount, 10), nil, "", &body)
	return body.Coins, err
}

// SetUsername changes the display name.
func (c *Client) SetUsername(ctx context.Context, name string) (Progress, error) {
	payload, err := json.Marshal(map[string]string{"username": name})
	if err != nil {
		return Progress{}, err
	}
	var p Progress
	err = c.do(ctx, http.MethodPut, "/progress/username", bytes.NewReader(payload), "application/json", &p)
	return p, err
}

// Achievements lists every achievement with the child's status.
func (c *Client) Achievements(ctx context.Context) ([]core.AchievementStatus, error) {
	var out []core.AchievementStatus
	err := c.do(ctx, http.MethodGet, "/achievements", nil, "", &out)
	return out, err
}

// TopCategories returns the n most scanned categories.
func (c *Client) TopCategories(ctx context.Context, n int) ([]CategoryCount, error) {
	var out []CategoryCount
	err := c.do(ctx, http.MethodGet, "/stats/categories?top="+strconv.Itoa(n), nil, "", &out)
	return out, err
}

// Categories lists the waste categories.
func (c *Client) Categories(ctx context.Context) ([]core.WasteCategory, error) {
	var out []core.WasteCategory
	err := c.do(ctx, http.MethodGet, "/catalog/categories", nil, "", &out)
	return out, err
}

// Shop lists badges and stickers with ownership flags.
func (c *Client) Shop(ctx context.Context) (Shop, error) {
	var out Shop
	err := c.do(ctx, http.MethodGet, "/catalog/rewards", nil, "", &out)
	return out, err
}

// Health calls /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, "/healthz", nil, "", &hs)
	return hs, err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values,
// optionally limited to types. The returned channel closes when ctx is done
// or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, types ...core.EventType) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		target += "?types=" + url.QueryEscape(strings.Join(names, ","))
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}
	// unblock ReadJSON when ctx ends
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	out := make(chan core.Event, 32)
	go func() {
		defer close(out)
		defer stop()
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
