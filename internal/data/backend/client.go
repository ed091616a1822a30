// Package backend is the HTTP client for the tracker service REST API.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-tracker-monitor/internal/core/model"
	"github.com/penwyp/go-tracker-monitor/internal/util"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodySize    = 32 << 20
)

// ErrMalformedResponse marks a response body that is not the expected JSON.
// Callers treat it as an empty result.
var ErrMalformedResponse = errors.New("malformed response")

// TransportError is a failed request: no connection, timeout or a non-2xx
// status
type TransportError struct {
	Endpoint   string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status code %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client talks to one tracker service
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// BaseURL returns the service address
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(parts ...string) string {
	u := *c.baseURL
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(escaped, "/")
	u.RawPath = ""
	return u.String()
}

func (c *Client) get(ctx context.Context, parts ...string) ([]byte, error) {
	endpoint := "/" + strings.Join(parts, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(parts...), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		util.LogDebugf("Request %s failed: %v", endpoint, err)
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		util.LogDebugf("Unexpected HTTP status code for %s: %d", endpoint, resp.StatusCode)
		return nil, &TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	return body, nil
}

func malformed(endpoint string, err error) error {
	util.LogWarn("Malformed backend response", util.F("endpoint", endpoint), util.F("error", err.Error()))
	return fmt.Errorf("%s: %w: %v", endpoint, ErrMalformedResponse, err)
}

// ListTrackers returns the serials known to the service
func (c *Client) ListTrackers(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "trackers")
	if err != nil {
		return nil, err
	}

	var serials []string
	if err := sonic.Unmarshal(body, &serials); err != nil {
		return []string{}, malformed("/trackers", err)
	}
	if serials == nil {
		serials = []string{}
	}
	return serials, nil
}

// Stats returns the per-serial summary in the order the service lists it
func (c *Client) Stats(ctx context.Context) (model.StatsSet, error) {
	body, err := c.get(ctx, "stats")
	if err != nil {
		return nil, err
	}

	var stats model.StatsSet
	if err := stats.UnmarshalJSON(body); err != nil {
		return model.StatsSet{}, malformed("/stats", err)
	}
	return stats, nil
}

// History returns the point history of serial in the order the service
// sent it
func (c *Client) History(ctx context.Context, serial string) ([]model.TrackPoint, error) {
	body, err := c.get(ctx, "data", serial)
	if err != nil {
		return nil, err
	}

	points, err := decodeFeatureCollection(body)
	if err != nil {
		return []model.TrackPoint{}, malformed("/data/"+serial, err)
	}
	return points, nil
}

// Register asks the service to start tracking serial. The response body is
// ignored.
func (c *Client) Register(ctx context.Context, serial string) error {
	if strings.TrimSpace(serial) == "" {
		return errors.New("serial must not be empty")
	}
	_, err := c.get(ctx, "add", serial)
	return err
}
