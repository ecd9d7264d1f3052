// Package api is the HTTP client for the todos service.
//
// The session is an opaque cookie set by the login endpoint. The client
// keeps it in a Slot so it survives process restarts, and replays it on
// every request and on the realtime handshake.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultPrefix     = "/api/v1"
	DefaultCookieName = "session_id"
)

var (
	// ErrNoSession is returned for 401 and 403 responses.
	ErrNoSession = errors.New("no session")
	// ErrBadRequest is returned for 400 responses, e.g. a wrong login code.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
)

// HTTPError is a non-2xx response. Detail is the server's "detail" field
// when it sent one.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// Unwrap maps the status onto the package sentinels so callers can use
// errors.Is.
func (e *HTTPError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrNoSession
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// Slot persists the session cookie value.
type Slot interface {
	Get() (string, bool)
	Set(v string) error
	Clear() error
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithCookieSlot(s Slot) Option         { return func(c *Client) { c.cookies = s } }
func WithCookieName(n string) Option       { return func(c *Client) { c.cookieName = n } }
func WithPrefix(p string) Option           { return func(c *Client) { c.prefix = p } }
func WithLogger(l *slog.Logger) Option     { return func(c *Client) { c.log = l } }

// Client talks to one server.
type Client struct {
	server     *url.URL
	prefix     string
	http       *http.Client
	cookies    Slot
	cookieName string
	log        *slog.Logger
}

// New builds a client for the server at baseURL, e.g. http://localhost:8000.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		server:     u,
		prefix:     DefaultPrefix,
		http:       &http.Client{Timeout: 15 * time.Second},
		cookies:    &memorySlot{},
		cookieName: DefaultCookieName,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// endpoint joins the API prefix and path, keeping a trailing slash if path
// has one.
func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.server
	u.Path = strings.TrimRight(c.server.Path, "/") + c.prefix + path
	u.RawQuery = ""
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// RealtimeURL is the WebSocket address of the push channel.
func (c *Client) RealtimeURL() string {
	u, _ := url.Parse(c.endpoint("/todos/ws", nil))
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

// SessionHeader carries the session cookie for requests made outside the
// client, such as the WebSocket handshake.
func (c *Client) SessionHeader() http.Header {
	h := http.Header{}
	if v, ok := c.cookies.Get(); ok && v != "" {
		h.Set("Cookie", (&http.Cookie{Name: c.cookieName, Value: v}).String())
	}
	return h
}

// HasCookie reports whether a session cookie is stored locally.
func (c *Client) HasCookie() bool {
	v, ok := c.cookies.Get()
	return ok && v != ""
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if v, ok := c.cookies.Get(); ok && v != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: v})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.storeCookie(resp)

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	c.log.Debug("api request", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Detail: detail(b)}
	}
	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, in, out any) error {
	var body io.Reader
	ct := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		body = bytes.NewReader(b)
		ct = "application/json"
	}
	return c.do(ctx, method, path, q, body, ct, out)
}

func (c *Client) storeCookie(resp *http.Response) {
	for _, ck := range resp.Cookies() {
		if ck.Name != c.cookieName {
			continue
		}
		var err error
		if ck.Value == "" || ck.MaxAge < 0 {
			err = c.cookies.Clear()
		} else {
			err = c.cookies.Set(ck.Value)
		}
		if err != nil {
			c.log.Warn("api: persist session cookie", "err", err)
		}
	}
}

// detail extracts {"detail": "..."} from an error body. Structured details
// are returned as raw JSON.
func detail(b []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(b, &env); err != nil || len(env.Detail) == 0 {
		return strings.TrimSpace(string(b))
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return s
	}
	return string(env.Detail)
}

func pageQuery(skip, limit int) url.Values {
	q := url.Values{}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

type memorySlot struct {
	mu sync.Mutex
	v  string
}

func (m *memorySlot) Get() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v, m.v != ""
}

func (m *memorySlot) Set(v string) error {
	m.mu.Lock()
	m.v = v
	m.mu.Unlock()
	return nil
}

func (m *memorySlot) Clear() error { return m.Set("") }
