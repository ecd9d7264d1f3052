package realtime

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/Makepad-fr/todos/internal/model"
)

// randomStream draws n upsert/delete events over a small id space so ids
// are upserted, deleted and re-created many times.
func randomStream(r *rand.Rand, n int) []Event {
	idSpace := []string{"a", "b", "c", "d", "e"}
	out := make([]Event, n)
	for i := range out {
		id := idSpace[r.IntN(len(idSpace))]
		if r.IntN(3) == 0 {
			out[i] = Event{Kind: KindDelete, ID: id}
			continue
		}
		out[i] = upsert(id, fmt.Sprintf("%s-%d", id, i))
	}
	return out
}

// reference keeps the expected Collection: one entry per id holding the
// last upsert, in first-insertion order since the last delete.
type reference struct {
	order []string
	title map[string]string
}

func newReference(p *model.TodoPage) *reference {
	ref := &reference{title: map[string]string{}}
	for _, t := range p.Data {
		ref.order = append(ref.order, t.ID)
		ref.title[t.ID] = t.Title
	}
	return ref
}

func (ref *reference) apply(ev Event) {
	_, present := ref.title[ev.ID]
	switch ev.Kind {
	case KindDelete:
		if !present {
			return
		}
		delete(ref.title, ev.ID)
		for i, id := range ref.order {
			if id == ev.ID {
				ref.order = append(ref.order[:i:i], ref.order[i+1:]...)
				break
			}
		}
	case KindUpsert:
		if !present {
			ref.order = append(ref.order, ev.ID)
		}
		ref.title[ev.ID] = ev.Todo.Title
	}
}

func (ref *reference) check(t *testing.T, step int, p *model.TodoPage) {
	t.Helper()
	seen := map[string]bool{}
	for _, todo := range p.Data {
		if seen[todo.ID] {
			t.Fatalf("step %d: duplicate id %s in %v", step, todo.ID, ids(p))
		}
		seen[todo.ID] = true
		if want := ref.title[todo.ID]; todo.Title != want {
			t.Fatalf("step %d: %s title = %q, want %q", step, todo.ID, todo.Title, want)
		}
	}
	if !equal(ids(p), ref.order) {
		t.Fatalf("step %d: ids = %v, want %v", step, ids(p), ref.order)
	}
	if p.Count != len(p.Data) {
		t.Fatalf("step %d: count = %d, len = %d", step, p.Count, len(p.Data))
	}
}

func TestApplyRandomStreams(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		r := rand.New(rand.NewPCG(seed, seed*7))
		page := newPage(model.Todo{ID: "b", Title: "b-start"}, model.Todo{ID: "z", Title: "z-start"})
		ref := newReference(page)
		for step, ev := range randomStream(r, 200) {
			before := ids(page)
			next := Apply(page, ev)
			if !equal(ids(page), before) {
				t.Fatalf("seed %d step %d: input page modified", seed, step)
			}
			ref.apply(ev)
			ref.check(t, step, next)
			page = next
		}
	}
}

func TestHandleAppliesStreamInOrder(t *testing.T) {
	for seed := uint64(1); seed <= 10; seed++ {
		r := rand.New(rand.NewPCG(seed, 99))
		todos := fetchedTodos(t, model.Todo{ID: "a", Title: "a-start", Status: model.StatusNew})
		start, _ := todos.Get()
		ref := newReference(start)

		var deleted []string
		c := &Channel{
			todos:    todos,
			log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
			onDelete: func(id string) { deleted = append(deleted, id) },
		}
		wantDeletes := 0
		for step, ev := range randomStream(r, 150) {
			var payload []byte
			var err error
			if ev.Kind == KindDelete {
				payload, err = EncodeDelete(ev.ID)
				wantDeletes++
			} else {
				payload, err = EncodeUpsert(ev.Todo)
			}
			if err != nil {
				t.Fatal(err)
			}
			c.handle(payload)
			ref.apply(ev)
			page, _ := todos.Get()
			ref.check(t, step, page)
		}
		if len(deleted) != wantDeletes {
			t.Fatalf("seed %d: delete hook ran %d times, want %d", seed, len(deleted), wantDeletes)
		}
	}
}
