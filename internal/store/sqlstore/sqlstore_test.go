package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Makepad-fr/todos/internal/model"
)

func openTest(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func mustUser(t *testing.T, s *Store, phone int64, greeting ...model.TodoDraft) UserRecord {
	t.Helper()
	u, err := s.CreateUser(context.Background(), phone, greeting)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestCreateUserWithGreeting(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	u := mustUser(t, s, 15550001,
		model.TodoDraft{Title: "Register in Todos", Status: model.StatusDone},
		model.TodoDraft{Title: "Make a new Todo"},
	)

	page, err := s.ListTodos(ctx, u.ID, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || page.Count != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Data[0].Title != "Register in Todos" || page.Data[1].Status != model.StatusNew {
		t.Fatalf("greeting = %+v", page.Data)
	}
	if len(page.Data[0].Users) != 1 || page.Data[0].Users[0].ID != u.ID {
		t.Fatalf("members = %+v", page.Data[0].Users)
	}

	if _, err := s.CreateUser(ctx, 15550001, nil); err == nil {
		t.Fatal("duplicate phone accepted")
	}
	got, err := s.UserByPhone(ctx, 15550001)
	if err != nil || got.ID != u.ID || !got.Active {
		t.Fatalf("UserByPhone = %+v, %v", got, err)
	}
	if _, err := s.UserByPhone(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown phone err = %v", err)
	}
}

func TestUpdateUserPartial(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	u := mustUser(t, s, 1)
	name := "Ada"
	got, err := s.UpdateUser(ctx, u.ID, &name, nil)
	if err != nil || got.Name != "Ada" || got.Email != "" {
		t.Fatalf("UpdateUser = %+v, %v", got, err)
	}
	email := "ada@example.com"
	got, err = s.UpdateUser(ctx, u.ID, nil, &email)
	if err != nil || got.Name != "Ada" || got.Email != email {
		t.Fatalf("UpdateUser = %+v, %v", got, err)
	}
	if _, err := s.UpdateUser(ctx, "nobody", &name, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoginCodes(t *testing.T) {
	s, now := openTest(t)
	ctx := context.Background()

	if ok, err := s.ConsumeCode(ctx, 42, "1234", true); ok || err != nil {
		t.Fatalf("no pending code: ok=%v err=%v", ok, err)
	}
	if err := s.SaveCode(ctx, 42, "1234", 5*time.Minute); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.ConsumeCode(ctx, 42, "9999", false); ok {
		t.Fatal("wrong code accepted")
	}
	if ok, _ := s.ConsumeCode(ctx, 42, "1234", false); !ok {
		t.Fatal("right code rejected")
	}
	if ok, _ := s.ConsumeCode(ctx, 42, "1234", false); ok {
		t.Fatal("code reused")
	}

	if err := s.SaveCode(ctx, 42, "1111", time.Minute); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(2 * time.Minute)
	if ok, _ := s.ConsumeCode(ctx, 42, "1111", true); ok {
		t.Fatal("expired code accepted")
	}
}

func TestSessions(t *testing.T) {
	s, now := openTest(t)
	ctx := context.Background()
	u := mustUser(t, s, 7)

	id, expires, err := s.CreateSession(ctx, u.ID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !expires.Equal(now.Add(time.Hour)) {
		t.Fatalf("expires = %v", expires)
	}
	got, err := s.SessionUser(ctx, id)
	if err != nil || got.ID != u.ID {
		t.Fatalf("SessionUser = %+v, %v", got, err)
	}

	*now = now.Add(2 * time.Hour)
	if _, err := s.SessionUser(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session err = %v", err)
	}
	if err := s.PruneExpired(ctx); err != nil {
		t.Fatal(err)
	}

	id, _, _ = s.CreateSession(ctx, u.ID, time.Hour)
	if err := s.DeleteSession(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SessionUser(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted session err = %v", err)
	}
	if err := s.DeleteSession(ctx, "unknown"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
}

func TestTodoLifecycle(t *testing.T) {
	s, now := openTest(t)
	ctx := context.Background()
	u := mustUser(t, s, 1)

	created, err := s.CreateTodo(ctx, u.ID, model.TodoDraft{Title: "write", Description: "**md**"})
	if err != nil {
		t.Fatal(err)
	}
	if created.Status != model.StatusNew || !created.HasMember(u.ID) {
		t.Fatalf("created = %+v", created)
	}

	*now = now.Add(time.Minute)
	updated, err := s.UpdateTodo(ctx, created.ID, model.TodoDraft{Status: model.StatusDone})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "write" || updated.Status != model.StatusDone || updated.Description != "" {
		t.Fatalf("updated = %+v", updated)
	}
	if !updated.ModifiedAt.After(created.ModifiedAt) {
		t.Fatal("modified_at not bumped")
	}

	if _, err := s.UpdateTodo(ctx, created.ID, model.TodoDraft{UserIDs: []string{}}); !errors.Is(err, ErrNoMembers) {
		t.Fatalf("empty members err = %v", err)
	}
	if _, err := s.UpdateTodo(ctx, created.ID, model.TodoDraft{UserIDs: []string{"stranger"}}); !errors.Is(err, ErrInvalidMembers) {
		t.Fatalf("new member err = %v", err)
	}

	gone, err := s.DeleteTodo(ctx, created.ID)
	if err != nil || len(gone.Users) != 1 {
		t.Fatalf("DeleteTodo = %+v, %v", gone, err)
	}
	if _, err := s.Todo(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete err = %v", err)
	}
	if _, err := s.DeleteTodo(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestListTodosPaginates(t *testing.T) {
	s, now := openTest(t)
	ctx := context.Background()
	u := mustUser(t, s, 1)
	other := mustUser(t, s, 2)
	for _, title := range []string{"a", "b", "c"} {
		*now = now.Add(time.Second)
		if _, err := s.CreateTodo(ctx, u.ID, model.TodoDraft{Title: title}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateTodo(ctx, other.ID, model.TodoDraft{Title: "not mine"}); err != nil {
		t.Fatal(err)
	}

	page, err := s.ListTodos(ctx, u.ID, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || page.Count != 1 || page.Skip != 1 || page.Limit != 1 {
		t.Fatalf("envelope = %+v", page)
	}
	if page.Data[0].Title != "b" {
		t.Fatalf("page = %+v", page.Data)
	}
}

func TestInviteFlow(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	owner := mustUser(t, s, 100)
	guest := mustUser(t, s, 200)
	todo, _ := s.CreateTodo(ctx, owner.ID, model.TodoDraft{Title: "shared"})

	if ok, err := s.CreateInvite(ctx, guest.ID, todo.ID, 100); ok || err != nil {
		t.Fatalf("non-member invited: ok=%v err=%v", ok, err)
	}
	if ok, err := s.CreateInvite(ctx, owner.ID, todo.ID, 999); ok || err != nil {
		t.Fatalf("unknown phone: ok=%v err=%v", ok, err)
	}
	if ok, err := s.CreateInvite(ctx, owner.ID, todo.ID, 200); !ok || err != nil {
		t.Fatalf("CreateInvite: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.CreateInvite(ctx, owner.ID, todo.ID, 200); ok {
		t.Fatal("duplicate invite created")
	}

	page, err := s.ListInvites(ctx, guest.ID, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Data[0].Todo.Title != "shared" || page.Data[0].Status != InviteActive {
		t.Fatalf("invites = %+v", page)
	}
	inviteID := page.Data[0].ID

	if _, err := s.AcceptInvite(ctx, inviteID, owner.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("accept by someone else err = %v", err)
	}
	joined, err := s.AcceptInvite(ctx, inviteID, guest.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !joined.HasMember(guest.ID) || !joined.HasMember(owner.ID) {
		t.Fatalf("members = %+v", joined.Users)
	}
	page, _ = s.ListInvites(ctx, guest.ID, 0, 100)
	if page.Total != 0 {
		t.Fatalf("accepted invite still pending: %+v", page)
	}
	if ok, _ := s.CreateInvite(ctx, owner.ID, todo.ID, 200); ok {
		t.Fatal("member invited again")
	}
}

func TestDeclineInvite(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	owner := mustUser(t, s, 100)
	guest := mustUser(t, s, 200)
	todo, _ := s.CreateTodo(ctx, owner.ID, model.TodoDraft{Title: "shared"})
	if _, err := s.CreateInvite(ctx, owner.ID, todo.ID, 200); err != nil {
		t.Fatal(err)
	}
	page, _ := s.ListInvites(ctx, guest.ID, 0, 100)

	if err := s.DeclineInvite(ctx, page.Data[0].ID, guest.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeclineInvite(ctx, page.Data[0].ID, guest.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second decline err = %v", err)
	}
	if ok, _ := s.IsMember(ctx, todo.ID, guest.ID); ok {
		t.Fatal("declined invite added a member")
	}
}
