package overlay

import (
	"testing"
	"time"

	"github.com/Makepad-fr/todos/internal/clock"
	"github.com/Makepad-fr/todos/internal/model"
)

func page(todos ...model.Todo) *model.TodoPage {
	return &model.TodoPage{Data: todos, Count: len(todos), Total: len(todos)}
}

func loc(t *testing.T, raw string) Location {
	t.Helper()
	l, err := ParseLocation(raw)
	if err != nil {
		t.Fatalf("ParseLocation(%q): %v", raw, err)
	}
	return l
}

type recorder struct{ states []State }

func (r *recorder) record(s State) { r.states = append(r.states, s) }

func newTestController(t *testing.T) (*Controller, *clock.FakeClock, *recorder, *[]Location) {
	t.Helper()
	fc := clock.Fake(time.Unix(0, 0))
	rec := &recorder{}
	var navs []Location
	c := NewController(
		WithClock(fc),
		WithOnChange(rec.record),
		WithNavigator(func(l Location) { navs = append(navs, l) }),
	)
	return c, fc, rec, &navs
}

func TestSyncOpensForPresentItem(t *testing.T) {
	c, _, rec, _ := newTestController(t)
	c.Sync(loc(t, "todo_id=a"), page(model.Todo{ID: "a", Title: "Buy milk"}))

	if c.State() != Open {
		t.Fatalf("state = %v, want open", c.State())
	}
	got, ok := c.Selected()
	if !ok || got.Title != "Buy milk" {
		t.Fatalf("selected = %+v, %v", got, ok)
	}
	if len(rec.states) != 2 || rec.states[0] != Opening || rec.states[1] != Open {
		t.Fatalf("transitions = %v", rec.states)
	}
}

func TestSyncUnknownIDStaysClosed(t *testing.T) {
	c, fc, rec, _ := newTestController(t)
	c.Sync(loc(t, "todo_id=zzz"), page(model.Todo{ID: "a", Title: "x"}))
	if c.State() != Closed {
		t.Fatalf("state = %v", c.State())
	}
	if len(rec.states) != 0 {
		t.Fatalf("transitions = %v", rec.states)
	}
	if fc.Pending() != 0 {
		t.Fatal("timer scheduled for a closed overlay")
	}
}

func TestSyncBeforeFetchDoesNotOpen(t *testing.T) {
	c, _, _, _ := newTestController(t)
	c.Sync(loc(t, "todo_id=a"), nil)
	if c.State() != Closed {
		t.Fatalf("state = %v", c.State())
	}
}

func TestClearParamClosesAfterDelay(t *testing.T) {
	c, fc, rec, _ := newTestController(t)
	p := page(model.Todo{ID: "a", Title: "x"})
	c.Sync(loc(t, "todo_id=a"), p)
	c.Sync(loc(t, ""), p)

	if c.State() != Closing {
		t.Fatalf("state = %v, want closing", c.State())
	}
	if _, ok := c.Selected(); !ok {
		t.Fatal("selection cleared before the delay")
	}

	fc.Advance(DismissDelay - time.Millisecond)
	if c.State() != Closing {
		t.Fatalf("closed early")
	}
	fc.Advance(time.Millisecond)
	if c.State() != Closed {
		t.Fatalf("state = %v, want closed", c.State())
	}
	if _, ok := c.Selected(); ok {
		t.Fatal("selection kept after close")
	}
	want := []State{Opening, Open, Closing, Closed}
	if len(rec.states) != len(want) {
		t.Fatalf("transitions = %v, want %v", rec.states, want)
	}
	for i := range want {
		if rec.states[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", rec.states, want)
		}
	}
}

func TestReopenDuringClosingCancelsTimer(t *testing.T) {
	c, fc, _, _ := newTestController(t)
	p := page(model.Todo{ID: "a", Title: "x"}, model.Todo{ID: "b", Title: "y"})
	c.Sync(loc(t, "todo_id=a"), p)
	c.Sync(loc(t, ""), p)
	c.Sync(loc(t, "todo_id=b"), p)

	fc.Advance(time.Second)
	if c.State() != Open {
		t.Fatalf("state = %v, want open", c.State())
	}
	got, _ := c.Selected()
	if got.ID != "b" {
		t.Fatalf("selected = %q, want b", got.ID)
	}
}

func TestSyncRefreshesSelectedItem(t *testing.T) {
	c, _, _, _ := newTestController(t)
	c.Sync(loc(t, "todo_id=a"), page(model.Todo{ID: "a", Title: "old"}))
	c.Sync(loc(t, "todo_id=a"), page(model.Todo{ID: "a", Title: "new"}))
	got, _ := c.Selected()
	if got.Title != "new" {
		t.Fatalf("title = %q, want new", got.Title)
	}
}

func TestItemDeletedClosesShownItem(t *testing.T) {
	c, fc, _, navs := newTestController(t)
	p := page(model.Todo{ID: "a", Title: "x"})
	c.Sync(loc(t, "todo_id=a&tab=all"), p)

	c.ItemDeleted("a")
	if c.State() != Closing {
		t.Fatalf("state = %v, want closing", c.State())
	}
	if len(*navs) != 1 {
		t.Fatalf("navigations = %d, want 1", len(*navs))
	}
	nav := (*navs)[0]
	if nav.TodoID() != "" || nav.Values().Get("tab") != "all" {
		t.Fatalf("navigated to %q", nav.String())
	}
	fc.Advance(DismissDelay)
	if c.State() != Closed {
		t.Fatalf("state = %v", c.State())
	}
}

func TestItemDeletedOtherItemIgnored(t *testing.T) {
	c, _, _, navs := newTestController(t)
	c.Sync(loc(t, "todo_id=a"), page(model.Todo{ID: "a", Title: "x"}, model.Todo{ID: "b", Title: "y"}))
	c.ItemDeleted("b")
	if c.State() != Open {
		t.Fatalf("state = %v", c.State())
	}
	if len(*navs) != 0 {
		t.Fatal("navigated for an unrelated delete")
	}
}

func TestCreateOverlaySurvivesCollectionChanges(t *testing.T) {
	c, fc, _, _ := newTestController(t)
	c.OpenCreate()
	if c.State() != Open || !c.Creating() {
		t.Fatalf("state = %v creating = %v", c.State(), c.Creating())
	}
	c.Sync(loc(t, ""), page(model.Todo{ID: "pushed", Title: "from elsewhere"}))
	c.ItemDeleted("pushed")
	fc.Advance(time.Second)
	if c.State() != Open {
		t.Fatalf("create overlay closed by a push: %v", c.State())
	}

	c.Dismiss()
	fc.Advance(DismissDelay)
	if c.State() != Closed || c.Creating() {
		t.Fatalf("state = %v creating = %v", c.State(), c.Creating())
	}
}

func TestDismissWithoutParamDoesNotNavigate(t *testing.T) {
	c, _, _, navs := newTestController(t)
	c.OpenCreate()
	c.Dismiss()
	if len(*navs) != 0 {
		t.Fatal("navigated with no item parameter")
	}
}

func TestZeroDelayClosesImmediately(t *testing.T) {
	c := NewController(WithDelay(0))
	p := page(model.Todo{ID: "a", Title: "x"})
	c.Sync(loc(t, "todo_id=a"), p)
	c.Sync(loc(t, ""), p)
	if c.State() != Closed {
		t.Fatalf("state = %v", c.State())
	}
}

func TestLocation(t *testing.T) {
	l := loc(t, "?todo_id=a&x=1")
	if l.TodoID() != "a" {
		t.Fatalf("TodoID = %q", l.TodoID())
	}
	cleared := l.WithoutTodo()
	if cleared.TodoID() != "" || l.TodoID() != "a" {
		t.Fatal("WithoutTodo modified the receiver or kept the id")
	}
	if cleared.String() != "?x=1" {
		t.Fatalf("String = %q", cleared.String())
	}
	if (Location{}).String() != "" || (Location{}).TodoID() != "" {
		t.Fatal("zero location not empty")
	}
}
