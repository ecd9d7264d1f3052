package overlay

import (
	"net/url"
	"strings"
)

// ParamTodoID is the query parameter naming the item shown in the overlay.
const ParamTodoID = "todo_id"

// Location is the navigable state of the list screen: a parsed query
// string. The zero value is an empty location.
type Location struct {
	values url.Values
}

// ParseLocation parses a raw query string, with or without a leading "?".
func ParseLocation(raw string) (Location, error) {
	v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return Location{}, err
	}
	return Location{values: v}, nil
}

// TodoID returns the selected item id, or "" when none is named.
func (l Location) TodoID() string {
	if l.values == nil {
		return ""
	}
	return strings.TrimSpace(l.values.Get(ParamTodoID))
}

// WithTodo returns a copy of l naming id. An empty id removes the parameter.
func (l Location) WithTodo(id string) Location {
	next := l.clone()
	if id == "" {
		next.values.Del(ParamTodoID)
	} else {
		next.values.Set(ParamTodoID, id)
	}
	return next
}

// WithoutTodo returns a copy of l with the item parameter cleared and every
// other parameter kept.
func (l Location) WithoutTodo() Location { return l.WithTodo("") }

// Values returns a copy of the underlying query values.
func (l Location) Values() url.Values { return l.clone().values }

func (l Location) String() string {
	if len(l.values) == 0 {
		return ""
	}
	return "?" + l.values.Encode()
}

func (l Location) clone() Location {
	v := make(url.Values, len(l.values))
	for k, vs := range l.values {
		v[k] = append([]string(nil), vs...)
	}
	return Location{values: v}
}
