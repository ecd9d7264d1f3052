package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Makepad-fr/todos/internal/model"
)

func newTestClient(t *testing.T, h http.Handler) (*Client, *memorySlot) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	slot := &memorySlot{}
	c, err := New(srv.URL, WithCookieSlot(slot))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, slot
}

func TestLoginStoresCookieAndReplaysIt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Error(err)
			return
		}
		if r.PostForm.Get("username") != "79990001122" || r.PostForm.Get("password") != "1234" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Incorrect phone or code"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "abc", Path: "/"})
		_ = json.NewEncoder(w).Encode(model.User{ID: "u1", Phone: 79990001122})
	})
	mux.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("session_id")
		if err != nil || ck.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"detail":"Not authenticated"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(model.User{ID: "u1"})
	})
	c, slot := newTestClient(t, mux)
	ctx := context.Background()

	if _, err := c.Me(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Me before login: %v, want ErrNoSession", err)
	}

	_, err := c.Login(ctx, "79990001122", "0000")
	var he *HTTPError
	if !errors.As(err, &he) || he.Detail != "Incorrect phone or code" || !errors.Is(err, ErrBadRequest) {
		t.Fatalf("bad code err = %v", err)
	}

	u, err := c.Login(ctx, "79990001122", "1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.ID != "u1" {
		t.Fatalf("user = %+v", u)
	}
	if v, _ := slot.Get(); v != "abc" {
		t.Fatalf("cookie slot = %q", v)
	}
	if _, err := c.Me(ctx); err != nil {
		t.Fatalf("Me after login: %v", err)
	}
	if got := c.SessionHeader().Get("Cookie"); got != "session_id=abc" {
		t.Fatalf("session header = %q", got)
	}
}

func TestTodosPaginationAndCRUD(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/todos/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/todos/":
			if r.URL.Query().Get("limit") != "100" {
				t.Errorf("limit = %q", r.URL.Query().Get("limit"))
			}
			_ = json.NewEncoder(w).Encode(model.TodoPage{
				Data:  []model.Todo{{ID: "a", Title: "x", Status: model.StatusNew}},
				Count: 1, Total: 1, Limit: 100,
			})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/todos/":
			var d model.TodoDraft
			_ = json.NewDecoder(r.Body).Decode(&d)
			_ = json.NewEncoder(w).Encode(model.Todo{ID: "b", Title: d.Title, Status: d.Status})
		case r.Method == http.MethodPut && r.URL.Path == "/api/v1/todos/b":
			var d model.TodoDraft
			_ = json.NewDecoder(r.Body).Decode(&d)
			_ = json.NewEncoder(w).Encode(model.Todo{ID: "b", Title: d.Title, Status: d.Status})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/todos/b":
			_, _ = w.Write([]byte(`{"message":"Item deleted successfully"}`))
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Todo not found"}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	page, err := c.Todos(ctx, 0, DefaultPageLimit)
	if err != nil {
		t.Fatalf("Todos: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].ID != "a" {
		t.Fatalf("page = %+v", page)
	}

	created, err := c.CreateTodo(ctx, model.TodoDraft{Title: "Buy milk", Status: model.StatusNew})
	if err != nil || created.ID != "b" || created.Title != "Buy milk" {
		t.Fatalf("CreateTodo = %+v, %v", created, err)
	}
	updated, err := c.UpdateTodo(ctx, "b", model.TodoDraft{Title: "Buy milk", Status: model.StatusDone})
	if err != nil || updated.Status != model.StatusDone {
		t.Fatalf("UpdateTodo = %+v, %v", updated, err)
	}
	if err := c.DeleteTodo(ctx, "b"); err != nil {
		t.Fatalf("DeleteTodo: %v", err)
	}
	if err := c.DeleteTodo(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteTodo missing: %v", err)
	}
}

func TestInvites(t *testing.T) {
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/todos/invites/", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(model.InvitePage{Data: []model.Invite{{ID: "i1", Todo: &model.TodoShort{ID: "a", Title: "x"}}}})
			return
		}
		_, _ = w.Write([]byte(`{"message":"OK"}`))
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	page, err := c.Invites(ctx)
	if err != nil || len(page.Data) != 1 || page.Data[0].Todo.Title != "x" {
		t.Fatalf("Invites = %+v, %v", page, err)
	}
	if err := c.CreateInvite(ctx, "a", 79990001122); err != nil {
		t.Fatal(err)
	}
	if err := c.AcceptInvite(ctx, "i1"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeclineInvite(ctx, "i2"); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"GET /api/v1/todos/invites/?",
		"POST /api/v1/todos/invites/?todo_id=a&user_phone=79990001122",
		"POST /api/v1/todos/invites/i1/accept?",
		"POST /api/v1/todos/invites/i2/decline?",
	}
	if strings.Join(calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("calls:\n%s\nwant:\n%s", strings.Join(calls, "\n"), strings.Join(want, "\n"))
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/logout/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "", MaxAge: -1, Path: "/"})
		_, _ = w.Write([]byte(`{"message":"Logged out"}`))
	})
	c, slot := newTestClient(t, mux)
	_ = slot.Set("abc")

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if c.HasCookie() {
		t.Fatal("cookie kept after logout")
	}
}

func TestRealtimeURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8000":      "ws://localhost:8000/api/v1/todos/ws",
		"https://todos.example.com/": "wss://todos.example.com/api/v1/todos/ws",
		"https://example.com/app":    "wss://example.com/app/api/v1/todos/ws",
	}
	for in, want := range cases {
		c, err := New(in)
		if err != nil {
			t.Fatalf("New(%q): %v", in, err)
		}
		if got := c.RealtimeURL(); got != want {
			t.Errorf("RealtimeURL(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := New("ftp://x"); err == nil {
		t.Error("ftp scheme accepted")
	}
}

func TestDetail(t *testing.T) {
	cases := []struct{ body, want string }{
		{`{"detail":"Todo not found"}`, "Todo not found"},
		{`{"detail":[{"loc":["query"]}]}`, `[{"loc":["query"]}]`},
		{"Internal Server Error", "Internal Server Error"},
	}
	for _, tc := range cases {
		if got := detail([]byte(tc.body)); got != tc.want {
			t.Errorf("detail(%s) = %q, want %q", tc.body, got, tc.want)
		}
	}
}
