package model

import (
	"strconv"
	"time"
)

// Status is the lifecycle column of a todo.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// StatusOrder is the order columns are rendered in.
var StatusOrder = []Status{StatusNew, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Next returns the status that follows s. ok is false past done, which
// callers treat as "delete the item".
func (s Status) Next() (next Status, ok bool) {
	switch s {
	case StatusNew:
		return StatusInProgress, true
	case StatusInProgress:
		return StatusDone, true
	}
	return "", false
}

// Label is the human text shown on status tags.
func (s Status) Label() string {
	switch s {
	case StatusNew:
		return "New"
	case StatusInProgress:
		return "In progress"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// Image is a reference to a stored profile picture.
type Image struct {
	ID       string `json:"id"`
	BlurHash string `json:"blur_hash,omitempty"`
}

// User is referenced by todos, never owned by them.
type User struct {
	ID           string `json:"id"`
	Phone        int64  `json:"phone,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	ProfileImage *Image `json:"profile_image,omitempty"`
}

// DisplayName falls back to the phone number when no name is set.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Phone != 0 {
		return "+" + strconv.FormatInt(u.Phone, 10)
	}
	return u.ID
}

// Todo is a single list item. Users is an unordered member set.
type Todo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Users       []User    `json:"users"`
	ModifiedAt  time.Time `json:"modified_at,omitempty"`
}

// HasMember reports whether userID is in the member set.
func (t Todo) HasMember(userID string) bool {
	for _, u := range t.Users {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// TodoDraft is the body of create and update requests.
type TodoDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	UserIDs     []string `json:"user_ids,omitempty"`
}

// TodoShort is the embedded todo reference of an invite.
type TodoShort struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status Status `json:"status"`
}

// Invite asks a user to join a todo.
type Invite struct {
	ID     string     `json:"id"`
	Todo   *TodoShort `json:"todo"`
	Status string     `json:"status,omitempty"`
}

// TodoPage is the paginated envelope of GET /todos/ and the cached
// Collection. Values are treated as immutable once published.
type TodoPage struct {
	Data  []Todo `json:"data"`
	Count int    `json:"count"`
	Total int    `json:"total"`
	Limit int    `json:"limit"`
	Skip  int    `json:"skip"`
}

// InvitePage is the paginated envelope of GET /todos/invites/.
type InvitePage struct {
	Data  []Invite `json:"data"`
	Count int      `json:"count"`
	Total int      `json:"total"`
	Limit int      `json:"limit"`
	Skip  int      `json:"skip"`
}

// Find returns the todo with id, if present.
func (p *TodoPage) Find(id string) (Todo, bool) {
	if p == nil || id == "" {
		return Todo{}, false
	}
	for _, t := range p.Data {
		if t.ID == id {
			return t, true
		}
	}
	return Todo{}, false
}

// ByStatus groups the page's todos by status, preserving order.
func (p *TodoPage) ByStatus() map[Status][]Todo {
	out := make(map[Status][]Todo, len(StatusOrder))
	if p == nil {
		return out
	}
	for _, t := range p.Data {
		out[t.Status] = append(out[t.Status], t)
	}
	return out
}
