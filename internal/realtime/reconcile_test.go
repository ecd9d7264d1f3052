package realtime

import (
	"testing"

	"github.com/Makepad-fr/todos/internal/model"
)

func ids(p *model.TodoPage) []string {
	out := make([]string, len(p.Data))
	for i, t := range p.Data {
		out[i] = t.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newPage(todos ...model.Todo) *model.TodoPage {
	return &model.TodoPage{Data: todos, Count: len(todos), Total: len(todos), Limit: 100}
}

func upsert(id, title string) Event {
	return Event{Kind: KindUpsert, ID: id, Todo: model.Todo{ID: id, Title: title, Status: model.StatusNew}}
}

func TestApplyUpsertReplacesInPlace(t *testing.T) {
	in := newPage(model.Todo{ID: "a", Title: "x"}, model.Todo{ID: "b", Title: "y"}, model.Todo{ID: "c", Title: "z"})
	out := Apply(in, upsert("b", "Y"))

	if !equal(ids(out), []string{"a", "b", "c"}) {
		t.Fatalf("order = %v", ids(out))
	}
	if out.Data[1].Title != "Y" {
		t.Fatalf("title = %q", out.Data[1].Title)
	}
	if in.Data[1].Title != "y" {
		t.Fatal("input page mutated")
	}
	if out.Total != 3 || out.Count != 3 {
		t.Fatalf("count = %d total = %d", out.Count, out.Total)
	}
}

func TestApplyUpsertAppendsNew(t *testing.T) {
	in := newPage(model.Todo{ID: "a", Title: "x"})
	out := Apply(in, upsert("n", "new"))
	if !equal(ids(out), []string{"a", "n"}) {
		t.Fatalf("order = %v", ids(out))
	}
	if out.Total != 2 || out.Count != 2 || out.Limit != 100 {
		t.Fatalf("envelope = %+v", out)
	}
	if len(in.Data) != 1 {
		t.Fatal("input page mutated")
	}
}

func TestApplyUpsertTwiceNoDuplicate(t *testing.T) {
	p := newPage()
	p = Apply(p, upsert("a", "one"))
	p = Apply(p, upsert("a", "two"))
	if !equal(ids(p), []string{"a"}) || p.Data[0].Title != "two" {
		t.Fatalf("page = %+v", p.Data)
	}
}

func TestApplyUpsertCollapsesExistingDuplicates(t *testing.T) {
	in := newPage(model.Todo{ID: "a", Title: "1"}, model.Todo{ID: "b"}, model.Todo{ID: "a", Title: "2"})
	out := Apply(in, upsert("a", "3"))
	if !equal(ids(out), []string{"a", "b"}) || out.Data[0].Title != "3" {
		t.Fatalf("page = %+v", out.Data)
	}
	if out.Total != 2 {
		t.Fatalf("total = %d", out.Total)
	}
}

func TestApplyDelete(t *testing.T) {
	in := newPage(model.Todo{ID: "a"}, model.Todo{ID: "b"})
	out := Apply(in, Event{Kind: KindDelete, ID: "a"})
	if !equal(ids(out), []string{"b"}) || out.Total != 1 || out.Count != 1 {
		t.Fatalf("page = %+v", out)
	}

	again := Apply(out, Event{Kind: KindDelete, ID: "a"})
	if !equal(ids(again), []string{"b"}) || again.Total != 1 {
		t.Fatalf("second delete changed the page: %+v", again)
	}

	missing := Apply(in, Event{Kind: KindDelete, ID: "zzz"})
	if !equal(ids(missing), []string{"a", "b"}) {
		t.Fatalf("delete of absent id changed the page: %v", ids(missing))
	}
}

func TestApplyNilPage(t *testing.T) {
	if Apply(nil, upsert("a", "x")) != nil {
		t.Fatal("created a collection from a push before the first fetch")
	}
	if Apply(nil, Event{Kind: KindDelete, ID: "a"}) != nil {
		t.Fatal("delete on nil page returned a value")
	}
}

func TestApplyUnknownKindIsNoop(t *testing.T) {
	in := newPage(model.Todo{ID: "a"})
	if out := Apply(in, Event{Kind: "rename", ID: "a"}); out != in {
		t.Fatal("unknown kind produced a new page")
	}
}
