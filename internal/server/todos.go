package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Makepad-fr/todos/internal/model"
	"github.com/Makepad-fr/todos/internal/realtime"
	"github.com/Makepad-fr/todos/internal/store/sqlstore"
)

// upgrader keeps gorilla's origin check: no Origin header, or an Origin
// whose host equals the request host.
var upgrader = websocket.Upgrader{}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.store.ListTodos(r.Context(), currentUser(r).ID, skip, limit)
	if err != nil {
		s.internalError(w, "list todos", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// memberTodo loads the {id} todo and answers 404 unless the current user is
// one of its members.
func (s *Server) memberTodo(w http.ResponseWriter, r *http.Request) (model.Todo, bool) {
	t, err := s.store.Todo(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, sqlstore.ErrNotFound) || (err == nil && !t.HasMember(currentUser(r).ID)) {
		writeDetail(w, http.StatusNotFound, "Todo not found")
		return model.Todo{}, false
	}
	if err != nil {
		s.internalError(w, "load todo", err)
		return model.Todo{}, false
	}
	return t, true
}

func (s *Server) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	if t, ok := s.memberTodo(w, r); ok {
		writeJSON(w, http.StatusOK, t)
	}
}

func validDraft(d model.TodoDraft, create bool) string {
	if create && strings.TrimSpace(d.Title) == "" {
		return "Title is required"
	}
	if d.Status != "" && !d.Status.Valid() {
		return "Unknown status"
	}
	return ""
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var d model.TodoDraft
	if err := decodeBody(r, &d); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := validDraft(d, true); msg != "" {
		writeDetail(w, http.StatusBadRequest, msg)
		return
	}
	t, err := s.store.CreateTodo(r.Context(), currentUser(r).ID, d)
	if err != nil {
		s.internalError(w, "create todo", err)
		return
	}
	s.pushUpsert(t)
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.memberTodo(w, r)
	if !ok {
		return
	}
	var d model.TodoDraft
	if err := decodeBody(r, &d); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := validDraft(d, false); msg != "" {
		writeDetail(w, http.StatusBadRequest, msg)
		return
	}
	t, err := s.store.UpdateTodo(r.Context(), cur.ID, d)
	switch {
	case errors.Is(err, sqlstore.ErrNoMembers):
		writeDetail(w, http.StatusBadRequest, "Can not delete all users from todo.")
		return
	case errors.Is(err, sqlstore.ErrInvalidMembers):
		writeDetail(w, http.StatusBadRequest, "One or more user IDs are invalid.")
		return
	case err != nil:
		s.internalError(w, "update todo", err)
		return
	}
	s.pushUpsert(t)
	// Members dropped by the update must see the item leave their list.
	for _, u := range cur.Users {
		if !t.HasMember(u.ID) {
			s.pushDelete(t.ID, []string{u.ID})
		}
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.memberTodo(w, r)
	if !ok {
		return
	}
	gone, err := s.store.DeleteTodo(r.Context(), cur.ID)
	if err != nil && !errors.Is(err, sqlstore.ErrNotFound) {
		s.internalError(w, "delete todo", err)
		return
	}
	if err == nil {
		s.pushDelete(gone.ID, userIDs(gone.Users))
	}
	writeMessage(w, "Item deleted successfully")
}

func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.store.ListInvites(r.Context(), currentUser(r).ID, skip, limit)
	if err != nil {
		s.internalError(w, "list invites", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleCreateInvite answers OK whether or not an invite was created so the
// reply does not reveal which phones are registered.
func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	todoID := strings.TrimSpace(q.Get("todo_id"))
	if todoID == "" {
		writeDetail(w, http.StatusBadRequest, "todo_id is required")
		return
	}
	phone, err := parsePhone(q.Get("user_phone"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid phone")
		return
	}
	created, err := s.store.CreateInvite(r.Context(), currentUser(r).ID, todoID, phone)
	if err != nil {
		s.internalError(w, "create invite", err)
		return
	}
	if created {
		s.log.Info("invite created", "todo", todoID, "by", currentUser(r).ID)
	}
	writeMessage(w, "OK")
}

func (s *Server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.AcceptInvite(r.Context(), mux.Vars(r)["id"], currentUser(r).ID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Invite not found")
		return
	}
	if err != nil {
		s.internalError(w, "accept invite", err)
		return
	}
	s.pushUpsert(t)
	writeMessage(w, "OK")
}

func (s *Server) handleDeclineInvite(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeclineInvite(r.Context(), mux.Vars(r)["id"], currentUser(r).ID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Invite not found")
		return
	}
	if err != nil {
		s.internalError(w, "decline invite", err)
		return
	}
	writeMessage(w, "OK")
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.log.Debug("server: ws upgrade", "err", err)
		return
	}
	s.hub.Serve(currentUser(r).ID, ws)
}

func (s *Server) pushUpsert(t model.Todo) {
	msg, err := realtime.EncodeUpsert(t)
	if err != nil {
		s.log.Error("server: encode push", "todo", t.ID, "err", err)
		return
	}
	s.hub.Publish(userIDs(t.Users), msg)
}

func (s *Server) pushDelete(id string, to []string) {
	msg, err := realtime.EncodeDelete(id)
	if err != nil {
		s.log.Error("server: encode push", "todo", id, "err", err)
		return
	}
	s.hub.Publish(to, msg)
}

func userIDs(users []model.User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}
