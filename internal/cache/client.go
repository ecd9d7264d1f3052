package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Invalidator is the untyped view of a Query a Client needs.
type Invalidator interface {
	Key() string
	Invalidate(ctx context.Context) error
	Reset()
}

// Client indexes queries by key so callers can invalidate by identity
// without holding a typed reference.
type Client struct {
	mu      sync.RWMutex
	queries map[string]Invalidator
}

func NewClient() *Client {
	return &Client{queries: make(map[string]Invalidator)}
}

// Register adds q. Registering a second query under the same key replaces
// the first.
func (c *Client) Register(q Invalidator) {
	c.mu.Lock()
	c.queries[q.Key()] = q
	c.mu.Unlock()
}

// Invalidate re-fetches every named query in order, returning all errors.
func (c *Client) Invalidate(ctx context.Context, keys ...string) error {
	var errs []error
	for _, k := range keys {
		c.mu.RLock()
		q, ok := c.queries[k]
		c.mu.RUnlock()
		if !ok {
			errs = append(errs, fmt.Errorf("invalidate %q: unknown query", k))
			continue
		}
		if err := q.Invalidate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("invalidate %q: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// ResetAll drops every cached value.
func (c *Client) ResetAll() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, q := range c.queries {
		q.Reset()
	}
}
