package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Makepad-fr/todos/internal/authflow"
	"github.com/Makepad-fr/todos/internal/model"
)

// ErrEmptyTitle is returned when a draft has no title.
var ErrEmptyTitle = errors.New("title is required")

// Submit creates the item when id is empty and updates it otherwise, then
// re-fetches the Collection. A create overlay is closed once the
// Collection holds the new item.
func (a *App) Submit(ctx context.Context, id string, d model.TodoDraft) (*model.Todo, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return nil, ErrEmptyTitle
	}
	if d.Status == "" {
		d.Status = model.StatusNew
	}
	if !d.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q", d.Status)
	}

	var (
		t   *model.Todo
		err error
	)
	if id == "" {
		t, err = a.API.CreateTodo(ctx, d)
	} else {
		t, err = a.API.UpdateTodo(ctx, id, d)
	}
	if err != nil {
		return nil, fmt.Errorf("save todo: %w", err)
	}
	if err := a.Cache.Invalidate(ctx, KeyTodos); err != nil {
		a.Log.Warn("app: refetch after save", "err", err)
	}
	if id == "" && a.Overlay.Creating() {
		a.Overlay.Dismiss()
	}
	a.SyncOverlay()
	return t, nil
}

// AdvanceStatus moves t one step along new, in progress, done. Advancing a
// done item deletes it and closes the overlay.
func (a *App) AdvanceStatus(ctx context.Context, t model.Todo) (*model.Todo, error) {
	next, ok := t.Status.Next()
	if !ok {
		if err := a.Delete(ctx, t.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	d := model.TodoDraft{Title: t.Title, Description: t.Description, Status: next}
	for _, u := range t.Users {
		d.UserIDs = append(d.UserIDs, u.ID)
	}
	return a.Submit(ctx, t.ID, d)
}

// Delete removes the item, re-fetches and closes the overlay if it shows it.
func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.API.DeleteTodo(ctx, id); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if err := a.Cache.Invalidate(ctx, KeyTodos); err != nil {
		a.Log.Warn("app: refetch after delete", "err", err)
	}
	a.Overlay.ItemDeleted(id)
	a.SyncOverlay()
	return nil
}

// Invite asks the user with phone to join todoID.
func (a *App) Invite(ctx context.Context, todoID, phone string) error {
	digits := authflow.Digits(phone)
	if digits == "" {
		return &authflow.FieldError{Field: authflow.FieldPhone, Message: "Required field", Err: authflow.ErrInvalidPhone}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return &authflow.FieldError{Field: authflow.FieldPhone, Message: "Phone number is too long", Err: authflow.ErrInvalidPhone}
	}
	if err := a.API.CreateInvite(ctx, todoID, n); err != nil {
		return fmt.Errorf("invite: %w", err)
	}
	return nil
}

// AcceptInvite joins the invited item and refreshes both lists.
func (a *App) AcceptInvite(ctx context.Context, id string) error {
	if err := a.API.AcceptInvite(ctx, id); err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}
	return a.Cache.Invalidate(ctx, KeyInvites, KeyTodos)
}

// DeclineInvite drops the invite and refreshes the invite list.
func (a *App) DeclineInvite(ctx context.Context, id string) error {
	if err := a.API.DeclineInvite(ctx, id); err != nil {
		return fmt.Errorf("decline invite: %w", err)
	}
	return a.Cache.Invalidate(ctx, KeyInvites)
}

// FindTodo resolves a full id or a unique id prefix against the cached
// Collection.
func (a *App) FindTodo(ref string) (model.Todo, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Todo{}, errors.New("empty todo id")
	}
	page, ok := a.Todos.Get()
	if !ok {
		return model.Todo{}, errors.New("todos not loaded")
	}
	if t, ok := page.Find(ref); ok {
		return t, nil
	}
	var match []model.Todo
	for _, t := range page.Data {
		if strings.HasPrefix(t.ID, ref) {
			match = append(match, t)
		}
	}
	switch len(match) {
	case 0:
		return model.Todo{}, fmt.Errorf("no todo matches %q", ref)
	case 1:
		return match[0], nil
	}
	return model.Todo{}, fmt.Errorf("%q matches %d todos", ref, len(match))
}
