package status

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_MissingFileIsDisabled(t *testing.T) {
	t.Parallel()

	s := Open(filepath.Join(t.TempDir(), "status", "mode"), nil)
	if s.Enabled() {
		t.Error("Enabled = true for missing file")
	}
	if s.String() != Disabled {
		t.Errorf("String = %q", s.String())
	}
}

func TestStore_SetPersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "status", "mode")
	s := Open(path, nil)
	if got := s.Set(true); !got {
		t.Fatal("Set(true) = false")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != Enabled {
		t.Errorf("file = %q, want %q", data, Enabled)
	}
	if !Open(path, nil).Enabled() {
		t.Error("reopened store is disabled")
	}
}

func TestStore_SetState(t *testing.T) {
	t.Parallel()

	s := Open(filepath.Join(t.TempDir(), "mode"), nil)
	if on, err := s.SetState("enabled\n"); err != nil || !on {
		t.Fatalf("SetState(enabled) = %v, %v", on, err)
	}
	if _, err := s.SetState("maybe"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
	if !s.Enabled() {
		t.Error("invalid state changed the flag")
	}
	if on, _ := s.SetState("disabled"); on {
		t.Error("SetState(disabled) = true")
	}
}

func TestStore_WriteFailureDisables(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "status")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// The parent of the status file is a regular file, so writes fail.
	s := Open(filepath.Join(blocker, "mode"), nil)
	if s.Set(true) {
		t.Error("Set(true) = true despite write failure")
	}
	if s.Enabled() {
		t.Error("Enabled = true after write failure")
	}
}

func TestStore_Refresh(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mode")
	s := Open(path, nil)
	if err := os.WriteFile(path, []byte("enabled\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !s.Refresh() || !s.Enabled() {
		t.Error("Refresh did not pick up the file")
	}
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if s.Refresh() {
		t.Error("garbage state read as enabled")
	}
}
