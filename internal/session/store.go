// Package session tracks whether the client holds a live server session.
//
// The persisted marker is the signed-in user's id. It is only a hint: the
// authoritative answer is the remote identity endpoint, and every Refresh
// overwrites the marker with what that endpoint says.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Makepad-fr/todos/internal/model"
)

// ErrNoSession is what an Identity returns when the server reports that
// the caller is not signed in.
var ErrNoSession = errors.New("no session")

// Slot is one durable string value, such as a key in the local store.
type Slot interface {
	Get() (string, bool)
	Set(v string) error
	Clear() error
}

// Identity is the remote side of the session.
type Identity interface {
	Me(ctx context.Context) (*model.User, error)
	Logout(ctx context.Context) error
}

// Store holds the session marker and the signed-in user.
type Store struct {
	slot     Slot
	identity Identity
	log      *slog.Logger

	mu     sync.Mutex
	marker string
	user   *model.User
	gen    uint64
	subs   map[int]chan struct{}
	nextID int
}

// New loads the persisted marker as an optimistic hint. Call Refresh to
// confirm it.
func New(slot Slot, identity Identity, log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{slot: slot, identity: identity, log: log, subs: make(map[int]chan struct{})}
	if v, ok := slot.Get(); ok {
		s.marker = v
	}
	return s
}

// Marker returns the current marker, "" when signed out.
func (s *Store) Marker() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker
}

// Authenticated reports whether list data may be fetched.
func (s *Store) Authenticated() bool { return s.Marker() != "" }

// User returns the user from the last successful Refresh.
func (s *Store) User() (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// Refresh asks the server who the caller is. Success stores the user id as
// the marker; any failure clears it. A missing session is not an error.
// When refreshes overlap only the most recently started one writes.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	user, err := s.identity.Me(ctx)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.log.Debug("session: discarded stale refresh")
		return nil
	}
	var persistErr error
	if err != nil || user == nil || user.ID == "" {
		s.marker = ""
		s.user = nil
		persistErr = s.slot.Clear()
	} else {
		s.marker = user.ID
		u := *user
		s.user = &u
		persistErr = s.slot.Set(user.ID)
	}
	s.mu.Unlock()
	s.notify()

	if persistErr != nil {
		s.log.Warn("session: persist marker", "err", persistErr)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNoSession):
		return nil
	default:
		s.log.Warn("session: identity check failed", "err", err)
		return fmt.Errorf("refresh session: %w", err)
	}
}

// Logout ends the remote session and refreshes. The marker is empty
// afterwards even when an older refresh completes later.
func (s *Store) Logout(ctx context.Context) error {
	logoutErr := s.identity.Logout(ctx)
	if logoutErr != nil {
		s.log.Warn("session: remote logout failed", "err", logoutErr)
	}
	refreshErr := s.Refresh(ctx)
	if logoutErr != nil {
		return fmt.Errorf("logout: %w", logoutErr)
	}
	return refreshErr
}

// Subscribe returns a channel signalled after every marker write.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
