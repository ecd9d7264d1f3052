package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Makepad-fr/todos/internal/model"
)

// DefaultPageLimit is the page size used for the Collection.
const DefaultPageLimit = 100

// CodeReply is the answer to a login code request.
type CodeReply struct {
	Phone int64  `json:"phone"`
	Name  string `json:"name,omitempty"`
}

// UserUpdate is the body of PATCH /users/me. Nil fields are left alone.
type UserUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Message is the generic {"message": ...} reply.
type Message struct {
	Message string `json:"message"`
}

func (c *Client) Todos(ctx context.Context, skip, limit int) (*model.TodoPage, error) {
	var page model.TodoPage
	if err := c.doJSON(ctx, http.MethodGet, "/todos/", pageQuery(skip, limit), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Todo(ctx context.Context, id string) (*model.Todo, error) {
	var t model.Todo
	if err := c.doJSON(ctx, http.MethodGet, "/todos/"+url.PathEscape(id), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) CreateTodo(ctx context.Context, d model.TodoDraft) (*model.Todo, error) {
	var t model.Todo
	if err := c.doJSON(ctx, http.MethodPost, "/todos/", nil, d, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) UpdateTodo(ctx context.Context, id string, d model.TodoDraft) (*model.Todo, error) {
	var t model.Todo
	if err := c.doJSON(ctx, http.MethodPut, "/todos/"+url.PathEscape(id), nil, d, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) DeleteTodo(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/todos/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) Invites(ctx context.Context) (*model.InvitePage, error) {
	var page model.InvitePage
	if err := c.doJSON(ctx, http.MethodGet, "/todos/invites/", nil, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateInvite invites the user with phone to todoID. The server answers
// OK even when nobody is invited (unknown phone, already a member).
func (c *Client) CreateInvite(ctx context.Context, todoID string, phone int64) error {
	q := url.Values{}
	q.Set("todo_id", todoID)
	q.Set("user_phone", strconv.FormatInt(phone, 10))
	return c.doJSON(ctx, http.MethodPost, "/todos/invites/", q, nil, nil)
}

func (c *Client) AcceptInvite(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/todos/invites/"+url.PathEscape(id)+"/accept", nil, nil, nil)
}

func (c *Client) DeclineInvite(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/todos/invites/"+url.PathEscape(id)+"/decline", nil, nil, nil)
}

// Me returns the signed-in user, or an error matching ErrNoSession.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.doJSON(ctx, http.MethodGet, "/users/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateMe(ctx context.Context, upd UserUpdate) (*model.User, error) {
	var u model.User
	if err := c.doJSON(ctx, http.MethodPatch, "/users/me", nil, upd, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// RequestCode asks the server to send a login code to phone.
func (c *Client) RequestCode(ctx context.Context, phone string) (*CodeReply, error) {
	var r CodeReply
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login/code", nil, map[string]string{"phone": phone}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Login exchanges phone and code for a session cookie. The body is form
// encoded with the phone as username and the code as password.
func (c *Client) Login(ctx context.Context, phone, code string) (*model.User, error) {
	form := url.Values{}
	form.Set("username", phone)
	form.Set("password", code)
	var u model.User
	err := c.do(ctx, http.MethodPost, "/auth/login", nil,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout ends the server session and forgets the local cookie.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/auth/logout/", nil, nil, nil)
	if clearErr := c.cookies.Clear(); clearErr != nil {
		c.log.Warn("api: clear session cookie", "err", clearErr)
	}
	return err
}
