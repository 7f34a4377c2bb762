package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockHeldError is returned when another process holds the profile lock.
type LockHeldError struct {
	PID     int
	Profile string
	Path    string
}

func (e *LockHeldError) Error() string {
	if e.Profile != "" {
		return fmt.Sprintf("profile %q locked by PID %d (%s)", e.Profile, e.PID, e.Path)
	}
	return fmt.Sprintf("profile lock held by PID %d (%s)", e.PID, e.Path)
}

// Lock represents an acquired profile lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire attempts to acquire an exclusive lock on the profile directory.
// Returns LockHeldError if another process already holds it.
func Acquire(profileDir string) (*Lock, error) {
	lockPath := filepath.Join(profileDir, "LOCK")
	profile := filepath.Base(profileDir)

	if err := os.MkdirAll(profileDir, 0700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		// Read holder details from the file for diagnostics.
		data, _ := os.ReadFile(lockPath)
		content := string(data)
		_ = f.Close()
		return nil, &LockHeldError{
			PID:     parsePID(content),
			Profile: parseField(content, "profile"),
			Path:    lockPath,
		}
	}

	// Record who holds the lock: profile name, PID, timestamp.
	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	content := fmt.Sprintf("profile=%s\npid=%d\ntime=%s\n",
		profile, os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: lockPath}, nil
}

// Release releases the lock. Safe to call on nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove lock file before closing to avoid stale files.
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func parsePID(content string) int {
	pid, _ := strconv.Atoi(parseField(content, "pid"))
	return pid
}

func parseField(content, key string) string {
	for _, line := range strings.Split(content, "\n") {
		if after, ok := strings.CutPrefix(line, key+"="); ok {
			return after
		}
	}
	return ""
}
