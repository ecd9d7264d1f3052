package server

import (
	"errors"
	"net/http"

	"github.com/Makepad-fr/todos/internal/store/sqlstore"
)

type codeRequest struct {
	Phone string `json:"phone"`
}

type codeReply struct {
	Phone int64  `json:"phone"`
	Name  string `json:"name,omitempty"`
}

func (s *Server) handleLoginCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	phone, err := parsePhone(req.Phone)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid phone")
		return
	}
	u, err := s.store.UserByPhone(r.Context(), phone)
	switch {
	case errors.Is(err, sqlstore.ErrNotFound):
	case err != nil:
		s.internalError(w, "user by phone", err)
		return
	case !u.Active:
		writeDetail(w, http.StatusBadRequest, "User not found")
		return
	}

	code := s.newCode()
	if err := s.opts.Sender.SendCode(r.Context(), phone, code); err != nil {
		s.log.Warn("server: send code", "phone", phone, "err", err)
		writeDetail(w, http.StatusBadRequest, "Can not send code")
		return
	}
	if err := s.store.SaveCode(r.Context(), phone, code, s.opts.CodeTTL); err != nil {
		s.internalError(w, "save code", err)
		return
	}
	writeJSON(w, http.StatusOK, codeReply{Phone: phone, Name: u.Name})
}

// handleLogin takes the OAuth2 password form: username is the phone and
// password the code.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid form")
		return
	}
	phone, err := parsePhone(r.PostForm.Get("username"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Incorrect phone or code")
		return
	}
	ok, err := s.store.ConsumeCode(r.Context(), phone, r.PostForm.Get("password"), s.opts.Debug)
	if err != nil {
		s.internalError(w, "consume code", err)
		return
	}
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Incorrect phone or code")
		return
	}

	u, err := s.store.UserByPhone(r.Context(), phone)
	if errors.Is(err, sqlstore.ErrNotFound) {
		u, err = s.store.CreateUser(r.Context(), phone, s.opts.Greeting)
		if err == nil {
			s.log.Info("user created", "user", u.ID)
		}
	}
	if err != nil {
		s.internalError(w, "login user", err)
		return
	}
	if !u.Active {
		writeDetail(w, http.StatusBadRequest, "User not found")
		return
	}

	id, expires, err := s.store.CreateSession(r.Context(), u.ID, s.opts.SessionTTL)
	if err != nil {
		s.internalError(w, "create session", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    id,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(s.opts.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   !s.opts.Debug,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, u.User)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(s.opts.CookieName); err == nil && c.Value != "" {
		if err := s.store.DeleteSession(r.Context(), c.Value); err != nil {
			s.log.Warn("server: delete session", "err", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !s.opts.Debug,
		SameSite: http.SameSiteStrictMode,
	})
	writeMessage(w, "Logged out")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r).User)
}

type userUpdate struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var upd userUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, err := s.store.UpdateUser(r.Context(), currentUser(r).ID, upd.Name, upd.Email)
	if err != nil {
		s.internalError(w, "update user", err)
		return
	}
	writeJSON(w, http.StatusOK, u.User)
	s.pushMemberships(r)
}

// pushMemberships re-sends the user's todos so other members see the new
// display name.
func (s *Server) pushMemberships(r *http.Request) {
	page, err := s.store.ListTodos(r.Context(), currentUser(r).ID, 0, defaultPageLimit)
	if err != nil {
		s.log.Warn("server: push memberships", "err", err)
		return
	}
	for _, t := range page.Data {
		s.pushUpsert(t)
	}
}
