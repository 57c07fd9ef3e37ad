package dblock

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classdb.lock")
	l := New(path, true, nil)
	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	// Releasing again is safe.
	if err := l.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestAbortIfHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classdb.lock")
	holder := New(path, true, nil)
	if err := holder.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer func() { _ = holder.Release() }()

	contender := New(path, true, nil)
	if err := contender.Acquire(); !errors.Is(err, ErrHeld) {
		t.Fatalf("contended Acquire = %v, want ErrHeld", err)
	}
}

func TestNoOpLock(t *testing.T) {
	l := NoOp()
	if err := l.Acquire(); err != nil {
		t.Fatalf("no-op Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("no-op Release: %v", err)
	}
}
