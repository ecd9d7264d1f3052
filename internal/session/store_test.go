package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Makepad-fr/todos/internal/model"
)

type memSlot struct {
	mu  sync.Mutex
	v   string
	set bool
}

func (m *memSlot) Get() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v, m.set
}

func (m *memSlot) Set(v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v, m.set = v, true
	return nil
}

func (m *memSlot) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v, m.set = "", false
	return nil
}

type meResult struct {
	user *model.User
	err  error
}

// fakeIdentity answers Me from a queue of results. A result may be gated so
// the test controls completion order.
type fakeIdentity struct {
	mu        sync.Mutex
	results   []meResult
	gates     []chan struct{}
	logoutErr error
	loggedOut bool
}

func (f *fakeIdentity) push(u *model.User, err error) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.results = append(f.results, meResult{u, err})
	f.gates = append(f.gates, gate)
	return gate
}

func (f *fakeIdentity) Me(ctx context.Context) (*model.User, error) {
	f.mu.Lock()
	r, gate := f.results[0], f.gates[0]
	f.results, f.gates = f.results[1:], f.gates[1:]
	f.mu.Unlock()
	select {
	case <-gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.user, r.err
}

func (f *fakeIdentity) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return f.logoutErr
}

func ready(f *fakeIdentity, u *model.User, err error) {
	close(f.push(u, err))
}

func TestNewLoadsPersistedHint(t *testing.T) {
	slot := &memSlot{}
	_ = slot.Set("u1")
	s := New(slot, &fakeIdentity{}, nil)
	if !s.Authenticated() || s.Marker() != "u1" {
		t.Fatalf("marker = %q", s.Marker())
	}
}

func TestRefreshSuccessPersistsMarker(t *testing.T) {
	slot := &memSlot{}
	id := &fakeIdentity{}
	ready(id, &model.User{ID: "u2", Name: "Ann"}, nil)
	s := New(slot, id, nil)

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s.Marker() != "u2" {
		t.Fatalf("marker = %q", s.Marker())
	}
	if v, _ := slot.Get(); v != "u2" {
		t.Fatalf("persisted = %q", v)
	}
	u, ok := s.User()
	if !ok || u.Name != "Ann" {
		t.Fatalf("user = %+v", u)
	}
}

func TestRefreshNoSessionClearsMarker(t *testing.T) {
	slot := &memSlot{}
	_ = slot.Set("u1")
	id := &fakeIdentity{}
	ready(id, nil, ErrNoSession)
	s := New(slot, id, nil)

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned %v for a missing session", err)
	}
	if s.Authenticated() {
		t.Fatal("still authenticated")
	}
	if _, ok := slot.Get(); ok {
		t.Fatal("marker still persisted")
	}
}

func TestRefreshTransientErrorClearsAndReports(t *testing.T) {
	slot := &memSlot{}
	_ = slot.Set("u1")
	id := &fakeIdentity{}
	boom := errors.New("connection refused")
	ready(id, nil, boom)
	s := New(slot, id, nil)

	err := s.Refresh(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if s.Authenticated() {
		t.Fatal("marker kept after failed check")
	}
}

func TestStaleRefreshDoesNotOverwrite(t *testing.T) {
	slot := &memSlot{}
	id := &fakeIdentity{}
	slowGate := id.push(&model.User{ID: "u1"}, nil)
	s := New(slot, id, nil)

	done := make(chan error)
	go func() { done <- s.Refresh(context.Background()) }()

	// wait until the slow refresh has taken its result
	for {
		id.mu.Lock()
		n := len(id.results)
		id.mu.Unlock()
		if n == 0 {
			break
		}
	}

	ready(id, nil, ErrNoSession)
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	close(slowGate)
	if err := <-done; err != nil {
		t.Fatalf("stale refresh: %v", err)
	}

	if s.Authenticated() {
		t.Fatalf("marker = %q after logout", s.Marker())
	}
	if !id.loggedOut {
		t.Fatal("remote logout not called")
	}
}

func TestLogoutRemoteFailureStillRefreshes(t *testing.T) {
	slot := &memSlot{}
	id := &fakeIdentity{logoutErr: errors.New("503")}
	ready(id, nil, ErrNoSession)
	s := New(slot, id, nil)

	if err := s.Logout(context.Background()); err == nil {
		t.Fatal("expected logout error")
	}
	if s.Authenticated() {
		t.Fatal("authenticated after refresh reported no session")
	}
}

func TestSubscribeSignalsOnRefresh(t *testing.T) {
	id := &fakeIdentity{}
	ready(id, &model.User{ID: "u1"}, nil)
	s := New(&memSlot{}, id, nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	_ = s.Refresh(context.Background())
	select {
	case <-ch:
	default:
		t.Fatal("no signal after refresh")
	}
}
