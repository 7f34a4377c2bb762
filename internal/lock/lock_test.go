package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}

	lockPath := filepath.Join(dir, "LOCK")
	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatal(err)
	}
	if pid := parsePID(string(data)); pid != os.Getpid() {
		t.Errorf("lock file pid = %d, want %d", pid, os.Getpid())
	}
	if got := parseField(string(data), "profile"); got != filepath.Base(dir) {
		t.Errorf("lock file profile = %q, want %q", got, filepath.Base(dir))
	}

	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock file should be removed on release")
	}
}

func TestAcquireConflict(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l.Release() }()

	_, err = Acquire(dir)
	var held *LockHeldError
	if !errors.As(err, &held) {
		t.Fatalf("second acquire err = %v, want LockHeldError", err)
	}
	if held.PID != os.Getpid() {
		t.Errorf("reported pid = %d, want %d", held.PID, os.Getpid())
	}
	if held.Profile != filepath.Base(dir) {
		t.Errorf("reported profile = %q, want %q", held.Profile, filepath.Base(dir))
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}

	l2, err := Acquire(dir)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	_ = l2.Release()
}

func TestReleaseNilIsSafe(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
}
