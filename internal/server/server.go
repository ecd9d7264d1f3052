// Package server is the todos HTTP service: phone/code login with an
// opaque session cookie, todo and invite CRUD under an API prefix, and a
// per-user WebSocket that pushes every change to the item's members.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Makepad-fr/todos/internal/model"
	"github.com/Makepad-fr/todos/internal/store/sqlstore"
)

// Defaults for Options.
const (
	DefaultPrefix     = "/api/v1"
	DefaultCookieName = "session_id"
	DefaultSessionTTL = 30 * 24 * time.Hour
	DefaultCodeTTL    = 5 * time.Minute
	defaultPageLimit  = 100
)

// DefaultGreeting is created for every new user when greeting todos are on.
var DefaultGreeting = []model.TodoDraft{
	{Title: "Register in Todos", Status: model.StatusDone},
	{Title: "Login in Todos", Status: model.StatusDone},
	{Title: "Learn how to use Todos", Status: model.StatusInProgress},
	{Title: "Make a new Todo", Status: model.StatusNew},
}

// CodeSender delivers a login code to a phone.
type CodeSender interface {
	SendCode(ctx context.Context, phone int64, code string) error
}

// LogSender writes codes to the log. It stands in for an SMS gateway.
type LogSender struct{ Log *slog.Logger }

func (s LogSender) SendCode(_ context.Context, phone int64, code string) error {
	s.Log.Info("login code", "phone", phone, "code", code)
	return nil
}

type Options struct {
	Prefix     string
	CookieName string
	SessionTTL time.Duration
	CodeTTL    time.Duration
	// Greeting todos for new users; nil disables them.
	Greeting []model.TodoDraft
	// Debug accepts any code for a phone with a pending code and drops the
	// Secure cookie flag.
	Debug  bool
	Sender CodeSender
	Logger *slog.Logger
}

type Server struct {
	store  *sqlstore.Store
	hub    *Hub
	opts   Options
	log    *slog.Logger
	router *mux.Router
	// newCode is replaced in tests.
	newCode func() string
}

func New(store *sqlstore.Store, opts Options) *Server {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = DefaultCodeTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Sender == nil {
		opts.Sender = LogSender{Log: opts.Logger}
	}
	s := &Server{
		store:   store,
		hub:     NewHub(opts.Logger),
		opts:    opts,
		log:     opts.Logger,
		newCode: randomCode,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix(s.opts.Prefix).Subrouter()
	api.HandleFunc("/auth/login/code", s.handleLoginCode).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout/", s.handleLogout).Methods(http.MethodPost)

	api.Handle("/users/me", s.authed(s.handleMe)).Methods(http.MethodGet)
	api.Handle("/users/me", s.authed(s.handleUpdateMe)).Methods(http.MethodPatch)

	// Fixed paths before /todos/{id}.
	api.Handle("/todos/ws", s.authed(s.handleWS)).Methods(http.MethodGet)
	api.Handle("/todos/invites/", s.authed(s.handleListInvites)).Methods(http.MethodGet)
	api.Handle("/todos/invites/", s.authed(s.handleCreateInvite)).Methods(http.MethodPost)
	api.Handle("/todos/invites/{id}/accept", s.authed(s.handleAcceptInvite)).Methods(http.MethodPost)
	api.Handle("/todos/invites/{id}/decline", s.authed(s.handleDeclineInvite)).Methods(http.MethodPost)

	api.Handle("/todos/", s.authed(s.handleListTodos)).Methods(http.MethodGet)
	api.Handle("/todos/", s.authed(s.handleCreateTodo)).Methods(http.MethodPost)
	api.Handle("/todos/{id}", s.authed(s.handleGetTodo)).Methods(http.MethodGet)
	api.Handle("/todos/{id}", s.authed(s.handleUpdateTodo)).Methods(http.MethodPut)
	api.Handle("/todos/{id}", s.authed(s.handleDeleteTodo)).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// Hub exposes the push hub.
func (s *Server) Hub() *Hub { return s.hub }

// Close ends every open socket.
func (s *Server) Close() { s.hub.Close() }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("listening", "addr", addr, "prefix", s.opts.Prefix, "debug", s.opts.Debug)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		if websocket.IsWebSocketUpgrade(r) {
			// The upgrader needs the raw writer to hijack.
			next.ServeHTTP(w, r)
			s.log.Debug("ws closed", "path", r.URL.Path, "dur", time.Since(start))
			return
		}
		next.ServeHTTP(sw, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", sw.status, "dur", time.Since(start))
	})
}

type ctxKey struct{}

func currentUser(r *http.Request) sqlstore.UserRecord {
	u, _ := r.Context().Value(ctxKey{}).(sqlstore.UserRecord)
	return u
}

// authed resolves the session cookie and rejects the request with 403
// when it names no live session.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(s.opts.CookieName)
		if err != nil || c.Value == "" {
			writeDetail(w, http.StatusForbidden, "Could not validate credentials")
			return
		}
		u, err := s.store.SessionUser(r.Context(), c.Value)
		if errors.Is(err, sqlstore.ErrNotFound) {
			writeDetail(w, http.StatusForbidden, "Could not validate credentials")
			return
		}
		if err != nil {
			s.internalError(w, "session lookup", err)
			return
		}
		h(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error("server: "+op, "err", err)
	writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// pageParams reads skip and limit. skip >= 0 and limit >= 1.
func pageParams(r *http.Request) (skip, limit int, err error) {
	limit = defaultPageLimit
	q := r.URL.Query()
	if v := q.Get("skip"); v != "" {
		if skip, err = strconv.Atoi(v); err != nil || skip < 0 {
			return 0, 0, errors.New("skip must be a non-negative integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
	}
	return skip, limit, nil
}

// parsePhone keeps the digits of raw.
func parsePhone(raw string) (int64, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, errors.New("phone has no digits")
	}
	return strconv.ParseInt(b.String(), 10, 64)
}

// randomCode returns four distinct digits.
func randomCode() string {
	var b strings.Builder
	for _, d := range rand.Perm(10)[:4] {
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}
