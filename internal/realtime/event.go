package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Makepad-fr/todos/internal/model"
)

// ErrMalformedEvent is returned for payloads that carry no identifier or
// are not JSON objects after unwrapping.
var ErrMalformedEvent = errors.New("malformed event")

// Kind says how an event changes the Collection.
type Kind string

const (
	KindUpsert Kind = "upsert"
	KindDelete Kind = "delete"
)

// Event is one pushed change.
type Event struct {
	Kind Kind
	ID   string
	// Todo is the full item for upserts; zero for deletes.
	Todo model.Todo
}

// envelope picks out the fields needed for classification. Title is a
// pointer so an absent field can be told apart from a present one.
type envelope struct {
	Kind  Kind    `json:"kind"`
	ID    string  `json:"id"`
	Title *string `json:"title"`
}

// DecodeEvent parses a pushed payload. The server double-encodes its
// messages (a JSON string whose content is the JSON object), so one string
// layer is unwrapped when present; a second layer is rejected.
//
// An explicit "kind" wins. Without it the legacy shape applies: an id with
// no (or an empty) title is a delete, anything else is an upsert.
func DecodeEvent(payload []byte) (Event, error) {
	raw := bytes.TrimSpace(payload)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return Event{}, fmt.Errorf("%w: unwrap: %v", ErrMalformedEvent, err)
		}
		raw = bytes.TrimSpace([]byte(inner))
	}
	if len(raw) == 0 || raw[0] != '{' {
		return Event{}, fmt.Errorf("%w: not an object", ErrMalformedEvent)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.ID == "" {
		return Event{}, fmt.Errorf("%w: missing id", ErrMalformedEvent)
	}

	kind := env.Kind
	switch kind {
	case KindUpsert, KindDelete:
	case "":
		if env.Title == nil || *env.Title == "" {
			kind = KindDelete
		} else {
			kind = KindUpsert
		}
	default:
		return Event{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, kind)
	}

	if kind == KindDelete {
		return Event{Kind: KindDelete, ID: env.ID}, nil
	}
	var todo model.Todo
	if err := json.Unmarshal(raw, &todo); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return Event{Kind: KindUpsert, ID: todo.ID, Todo: todo}, nil
}

// EncodeUpsert renders t the way the server pushes it: the item object
// encoded once more as a JSON string.
func EncodeUpsert(t model.Todo) ([]byte, error) {
	inner, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(inner))
}

// EncodeDelete renders the legacy untagged deletion shape, double-encoded.
func EncodeDelete(id string) ([]byte, error) {
	inner, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(inner))
}
