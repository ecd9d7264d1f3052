package localstore

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSlotsPersistAcrossOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.Get(SessionKey); ok {
		t.Fatal("fresh store has a session")
	}
	if err := s.Slot(SessionKey).Set("u1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Slot(ThemeKey).Set("dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	again, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, _ := again.Get(SessionKey); v != "u1" {
		t.Fatalf("session = %q", v)
	}
	if v, _ := again.Get(ThemeKey); v != "dark" {
		t.Fatalf("theme = %q", v)
	}

	if err := again.Slot(SessionKey).Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	third, _ := Open(dir)
	if _, ok := third.Get(SessionKey); ok {
		t.Fatal("session survived Clear")
	}
	if v, _ := third.Get(ThemeKey); v != "dark" {
		t.Fatal("clearing one slot touched the other")
	}
}

func TestFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := filepath.Join(t.TempDir(), "data")
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("file mode = %v", fi.Mode().Perm())
	}
	di, _ := os.Stat(dir)
	if di.Mode().Perm() != 0o700 {
		t.Fatalf("dir mode = %v", di.Mode().Perm())
	}
}

func TestCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte("{nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDeleteMissingKey(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("absent"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestMemorySlot(t *testing.T) {
	var m MemorySlot
	if _, ok := m.Get(); ok {
		t.Fatal("zero slot set")
	}
	_ = m.Set("x")
	if v, ok := m.Get(); !ok || v != "x" {
		t.Fatalf("got %q %v", v, ok)
	}
	_ = m.Clear()
	if _, ok := m.Get(); ok {
		t.Fatal("still set")
	}
}
