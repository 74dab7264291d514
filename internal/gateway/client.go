package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "repeatcal/internal/log"
	"repeatcal/internal/model"
)

const defaultTimeout = 10 * time.Second

// Client talks to the remote store's HTTP API.
type Client struct {
	baseURL  string
	client   *http.Client
	timeout  time.Duration
	username string
	password string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout sets the request timeout. A client given through
// WithHTTPClient is copied, never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBasicAuth sends HTTP Basic credentials on every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// NewClient creates a Client for the API rooted at baseURL,
// e.g. "http://127.0.0.1:3000".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.client
		hc.Timeout = c.timeout
		c.client = &hc
	}
	return c
}

var _ Gateway = (*Client)(nil)

type eventsBody struct {
	Events []model.Event `json:"events"`
}

type idsBody struct {
	EventIDs []string `json:"eventIds"`
}

func (c *Client) FetchAll(ctx context.Context) ([]model.Event, error) {
	var out eventsBody
	if err := c.do(ctx, "fetch events", http.MethodGet, "/api/events", "", nil, &out); err != nil {
		return nil, err
	}
	if out.Events == nil {
		out.Events = []model.Event{}
	}
	return out.Events, nil
}

func (c *Client) CreateOne(ctx context.Context, ev model.Event) (model.Event, error) {
	var out model.Event
	err := c.do(ctx, "create event", http.MethodPost, "/api/events", "", ev, &out)
	return out, err
}

func (c *Client) CreateMany(ctx context.Context, evs []model.Event) ([]model.Event, error) {
	var out eventsBody
	err := c.do(ctx, "create events", http.MethodPost, "/api/events-list", "", eventsBody{Events: evs}, &out)
	return out.Events, err
}

func (c *Client) UpdateOne(ctx context.Context, id string, ev model.Event) (model.Event, error) {
	var out model.Event
	err := c.do(ctx, "update event", http.MethodPut, "/api/events/"+url.PathEscape(id), id, ev, &out)
	return out, err
}

func (c *Client) UpdateMany(ctx context.Context, evs []model.Event) ([]model.Event, error) {
	var out eventsBody
	err := c.do(ctx, "update events", http.MethodPut, "/api/events-list", "", eventsBody{Events: evs}, &out)
	return out.Events, err
}

func (c *Client) DeleteOne(ctx context.Context, id string) error {
	return c.do(ctx, "delete event", http.MethodDelete, "/api/events/"+url.PathEscape(id), id, nil, nil)
}

func (c *Client) DeleteMany(ctx context.Context, ids []string) error {
	return c.do(ctx, "delete events", http.MethodDelete, "/api/events-list", "", idsBody{EventIDs: ids}, nil)
}

// do sends one request and decodes a JSON response into out (if non-nil).
// targetID only labels NotFoundError.
func (c *Client) do(ctx context.Context, op, method, path, targetID string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	appLog.Debug("remote request", "op", op, "method", method, "url", redactURL(c.baseURL)+path)

	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Op: op, ID: targetID}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(readErrorMessage(resp.Body, resp.Status))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// readErrorMessage extracts {"error": "..."} from an error response, falling
// back to the status line.
func readErrorMessage(r io.Reader, status string) string {
	var e struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	return status
}

// redactURL keeps only scheme and host of u so credentials or tokens in the
// path/query never reach the logs.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "remote://...(redacted)"
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return parsed.Scheme + "://" + parsed.Host
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
