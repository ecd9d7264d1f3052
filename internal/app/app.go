// Package app assembles the client: local storage, the API client, the
// session store, the theme, the query cache and the overlay controller.
// New is the single construction point and Close the single teardown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Makepad-fr/todos/internal/api"
	"github.com/Makepad-fr/todos/internal/authflow"
	"github.com/Makepad-fr/todos/internal/cache"
	"github.com/Makepad-fr/todos/internal/localstore"
	"github.com/Makepad-fr/todos/internal/model"
	"github.com/Makepad-fr/todos/internal/overlay"
	"github.com/Makepad-fr/todos/internal/realtime"
	"github.com/Makepad-fr/todos/internal/session"
	"github.com/Makepad-fr/todos/internal/ui"
)

// Query keys.
const (
	KeyTodos   = "todos"
	KeyInvites = "invites"
)

// Options configures New.
type Options struct {
	Server  string
	DataDir string
	Logger  *slog.Logger
	// SystemDark overrides terminal background detection.
	SystemDark func() bool
	// Overlay options, e.g. a fake clock in tests.
	OverlayOptions []overlay.Option
	APIOptions     []api.Option
}

// App is the client context passed to the TUI and the commands.
type App struct {
	Log     *slog.Logger
	Store   *localstore.Store
	API     *api.Client
	Session *session.Store
	Theme   *ui.Manager
	Cache   *cache.Client
	Todos   *cache.Query[*model.TodoPage]
	Invites *cache.Query[*model.InvitePage]
	Overlay *overlay.Controller

	overlayCh chan struct{}

	mu      sync.Mutex
	channel *realtime.Channel
}

// identity maps the API's missing-session error onto the session package.
type identity struct{ c *api.Client }

func (i identity) Me(ctx context.Context) (*model.User, error) {
	u, err := i.c.Me(ctx)
	if errors.Is(err, api.ErrNoSession) {
		return nil, session.ErrNoSession
	}
	return u, err
}

func (i identity) Logout(ctx context.Context) error { return i.c.Logout(ctx) }

func New(opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	st, err := localstore.Open(opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	apiOpts := append([]api.Option{
		api.WithCookieSlot(st.Slot(localstore.CookieKey)),
		api.WithLogger(log),
	}, opts.APIOptions...)
	client, err := api.New(opts.Server, apiOpts...)
	if err != nil {
		return nil, err
	}

	a := &App{
		Log:     log,
		Store:   st,
		API:     client,
		Session: session.New(st.Slot(localstore.SessionKey), identity{client}, log),
		Theme:   ui.NewManager(st.Slot(localstore.ThemeKey), opts.SystemDark),
		Cache:   cache.NewClient(),

		overlayCh: make(chan struct{}, 1),
	}
	a.Todos = cache.NewQuery(KeyTodos, func(ctx context.Context) (*model.TodoPage, error) {
		return client.Todos(ctx, 0, api.DefaultPageLimit)
	})
	a.Invites = cache.NewQuery(KeyInvites, func(ctx context.Context) (*model.InvitePage, error) {
		return client.Invites(ctx)
	})
	a.Cache.Register(a.Todos)
	a.Cache.Register(a.Invites)

	ovOpts := append([]overlay.Option{
		overlay.WithNavigator(a.Navigate),
		overlay.WithOnChange(a.overlayChanged),
	}, opts.OverlayOptions...)
	a.Overlay = overlay.NewController(ovOpts...)
	return a, nil
}

// LoginFlow returns a fresh phone/code login flow bound to the session.
func (a *App) LoginFlow() *authflow.Flow {
	return authflow.New(a.API, a.Session, a.Log)
}

// Start validates the session and, when signed in, loads the lists.
func (a *App) Start(ctx context.Context) error {
	if err := a.Session.Refresh(ctx); err != nil {
		return err
	}
	return a.Load(ctx)
}

// Load fetches the lists when a session exists and drops them otherwise.
func (a *App) Load(ctx context.Context) error {
	if !a.Session.Authenticated() {
		a.Cache.ResetAll()
		return nil
	}
	err := a.Cache.Invalidate(ctx, KeyTodos, KeyInvites)
	a.SyncOverlay()
	return err
}

// OverlayChanges signals overlay state transitions, coalesced.
func (a *App) OverlayChanges() <-chan struct{} { return a.overlayCh }

func (a *App) overlayChanged(overlay.State) {
	select {
	case a.overlayCh <- struct{}{}:
	default:
	}
}

// Connect opens the realtime channel for the signed-in user. A previous
// channel is closed first. Every applied push re-syncs the overlay before
// onEvent, which may be nil, is called.
func (a *App) Connect(ctx context.Context, onEvent func(realtime.Event), opts ...realtime.Option) (*realtime.Channel, error) {
	a.Disconnect()
	base := []realtime.Option{
		realtime.WithLogger(a.Log),
		realtime.WithHeader(a.API.SessionHeader()),
		realtime.WithOnDelete(a.Overlay.ItemDeleted),
		realtime.WithOnEvent(func(ev realtime.Event) {
			a.SyncOverlay()
			if onEvent != nil {
				onEvent(ev)
			}
		}),
	}
	ch, err := realtime.Open(ctx, a.API.RealtimeURL(), a.Todos, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.channel = ch
	a.mu.Unlock()
	return ch, nil
}

// Disconnect closes the realtime channel if one is open.
func (a *App) Disconnect() {
	a.mu.Lock()
	ch := a.channel
	a.channel = nil
	a.mu.Unlock()
	if ch != nil {
		_ = ch.Close()
	}
}

// Navigate replaces the current location and re-syncs the overlay.
func (a *App) Navigate(loc overlay.Location) {
	page, _ := a.Todos.Get()
	a.Overlay.Sync(loc, page)
}

// SyncOverlay re-syncs the overlay after a Collection change.
func (a *App) SyncOverlay() {
	a.Navigate(a.Overlay.Location())
}

// Logout ends the session and drops everything cached for the user.
func (a *App) Logout(ctx context.Context) error {
	a.Disconnect()
	err := a.Session.Logout(ctx)
	a.Cache.ResetAll()
	a.SyncOverlay()
	return err
}

// Close releases the realtime connection.
func (a *App) Close() error {
	a.Disconnect()
	return nil
}
