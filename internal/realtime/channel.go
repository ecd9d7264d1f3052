// Package realtime keeps the cached Collection in step with server pushes.
//
// A Channel owns one WebSocket connection and one read-loop goroutine.
// Messages are decoded and applied to the Collection in receipt order, one
// complete read-modify-write per message. There is no reconnect: when the
// connection drops the error is logged, the loop ends, and the last cached
// value stays authoritative until the next full fetch.
package realtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Makepad-fr/todos/internal/cache"
	"github.com/Makepad-fr/todos/internal/model"
)

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger for connection and decode failures.
func WithLogger(l *slog.Logger) Option { return func(c *Channel) { c.log = l } }

// WithDialer replaces the default dialer, e.g. to carry a cookie jar.
func WithDialer(d *websocket.Dialer) Option { return func(c *Channel) { c.dialer = d } }

// WithHeader adds request headers to the handshake.
func WithHeader(h http.Header) Option { return func(c *Channel) { c.header = h } }

// WithOnDelete registers a hook run after a delete has been applied.
// Hooks run on the read loop and must not call Close.
func WithOnDelete(fn func(id string)) Option { return func(c *Channel) { c.onDelete = fn } }

// WithOnEvent registers a hook run after every applied event.
func WithOnEvent(fn func(Event)) Option { return func(c *Channel) { c.onEvent = fn } }

// Channel is a live subscription to pushed todo changes.
type Channel struct {
	url      string
	todos    *cache.Query[*model.TodoPage]
	log      *slog.Logger
	dialer   *websocket.Dialer
	header   http.Header
	onDelete func(string)
	onEvent  func(Event)

	conn      *websocket.Conn
	done      chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	err     error
	stopCtx func() bool
}

// Open dials url and starts applying pushed events to todos. Cancelling
// ctx closes the channel.
func Open(ctx context.Context, url string, todos *cache.Query[*model.TodoPage], opts ...Option) (*Channel, error) {
	c := &Channel{
		url:    url,
		todos:  todos,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		dialer: websocket.DefaultDialer,
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	conn, _, err := c.dialer.DialContext(ctx, url, c.header)
	if err != nil {
		c.log.Error("realtime: dial failed", "url", url, "err", err)
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c.conn = conn
	c.log.Info("realtime: connected", "url", url)

	// With ctx already done the AfterFunc runs at once, so stopCtx is
	// published under mu for Close to read.
	c.mu.Lock()
	c.stopCtx = context.AfterFunc(ctx, func() { _ = c.Close() })
	c.mu.Unlock()
	go c.readLoop()
	return c, nil
}

func (c *Channel) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closing.Load() {
				c.log.Debug("realtime: closed", "url", c.url)
				return
			}
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info("realtime: disconnected", "url", c.url)
			} else {
				c.log.Error("realtime: connection lost", "url", c.url, "err", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Channel) handle(data []byte) {
	ev, err := DecodeEvent(data)
	if err != nil {
		c.log.Warn("realtime: dropped message", "err", err)
		return
	}
	c.todos.Update(func(cur *model.TodoPage) *model.TodoPage {
		return Apply(cur, ev)
	})
	if ev.Kind == KindDelete && c.onDelete != nil {
		c.onDelete(ev.ID)
	}
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

// Close ends the subscription and waits for the read loop to exit. It is
// safe to call more than once and from any goroutine except a hook.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.mu.Lock()
		stop := c.stopCtx
		c.mu.Unlock()
		if stop != nil {
			stop()
		}
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	<-c.done
	return c.closeErr
}

// Done is closed when the read loop has exited, for any reason.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended, or nil if it was closed locally or
// is still running.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
