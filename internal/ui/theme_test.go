package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Makepad-fr/todos/internal/localstore"
	"github.com/Makepad-fr/todos/internal/model"
)

func TestSavedPreferenceWins(t *testing.T) {
	slot := &localstore.MemorySlot{}
	_ = slot.Set("dark")
	m := NewManager(slot, func() bool { return false })
	if m.Name() != Dark {
		t.Fatalf("name = %s, want dark", m.Name())
	}
	if m.SystemChanged(false) {
		t.Fatal("system change overrode a saved preference")
	}
}

func TestFollowsSystemUntilToggle(t *testing.T) {
	slot := &localstore.MemorySlot{}
	m := NewManager(slot, func() bool { return true })
	if m.Name() != Dark {
		t.Fatalf("name = %s, want dark from system", m.Name())
	}
	if !m.SystemChanged(false) || m.Name() != Light {
		t.Fatalf("did not follow system to light")
	}
	if m.SystemChanged(false) {
		t.Fatal("reported a change for the same background")
	}

	name, err := m.Toggle()
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if name != Dark {
		t.Fatalf("toggled to %s", name)
	}
	if v, _ := slot.Get(); v != "dark" {
		t.Fatalf("persisted %q", v)
	}
	if m.SystemChanged(false) {
		t.Fatal("followed system after the user chose")
	}
}

func TestInvalidSavedValueIgnored(t *testing.T) {
	slot := &localstore.MemorySlot{}
	_ = slot.Set("neon")
	m := NewManager(slot, func() bool { return false })
	if m.Name() != Light {
		t.Fatalf("name = %s", m.Name())
	}
	if !m.SystemChanged(true) {
		t.Fatal("invalid saved value counted as a user choice")
	}
}

func TestParseName(t *testing.T) {
	cases := map[string]Name{"light": Light, " DARK ": Dark}
	for in, want := range cases {
		got, ok := ParseName(in)
		if !ok || got != want {
			t.Errorf("ParseName(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseName("auto"); ok {
		t.Error("auto accepted")
	}
}

func TestStatusTagLabels(t *testing.T) {
	th := For(Light)
	for s, want := range map[model.Status]string{
		model.StatusNew:        "New",
		model.StatusInProgress: "In progress",
		model.StatusDone:       "Done",
	} {
		if got := th.StatusTag(s); !strings.Contains(got, want) {
			t.Errorf("StatusTag(%s) = %q", s, got)
		}
	}
}

func TestPrinter(t *testing.T) {
	var out, errOut bytes.Buffer
	p := &Printer{Out: &out, Err: &errOut, Theme: For(Dark)}
	p.OK("added")
	p.Fail("boom")
	if !strings.Contains(out.String(), "added") {
		t.Fatalf("stdout = %q", out.String())
	}
	if !strings.Contains(errOut.String(), "boom") {
		t.Fatalf("stderr = %q", errOut.String())
	}
}

func TestProgressBar(t *testing.T) {
	got := ProgressBar(1, 2, 10)
	if !strings.HasPrefix(got, "█████░░░░░") || !strings.HasSuffix(got, " 50%") {
		t.Fatalf("ProgressBar = %q", got)
	}
	if ProgressBar(5, 0, 0) == "" {
		t.Fatal("empty bar for zero total")
	}
}

func TestMarkdownEmpty(t *testing.T) {
	if For(Light).Markdown("   ", 40) != "" {
		t.Fatal("blank description rendered")
	}
	if !strings.Contains(For(Dark).Markdown("hello **world**", 40), "world") {
		t.Fatal("rendered markdown lost text")
	}
}
