// Package lock guards the destination archive against concurrent runs.
// The mirror assumes exclusive ownership of the destination tree for the
// duration of a run, so a lock file is kept in the archive root.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// FileName is the name of the lock file inside the archive root.
	FileName = ".ncep-reanal.lock"

	// DefaultStaleTimeout is how old a lock may be before a crashed run's
	// leftover lock is reclaimed.
	DefaultStaleTimeout = 6 * time.Hour
)

// Info identifies the run holding the lock.
type Info struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
}

// RunLock is a file-based lock on the archive root.
type RunLock struct {
	path         string
	staleTimeout time.Duration
	held         bool
}

// New creates a lock for the given archive root. The root must exist.
func New(root string) *RunLock {
	return &RunLock{
		path:         filepath.Join(root, FileName),
		staleTimeout: DefaultStaleTimeout,
	}
}

// SetStaleTimeout overrides the stale-lock reclaim age.
func (l *RunLock) SetStaleTimeout(d time.Duration) {
	l.staleTimeout = d
}

// Acquire takes the lock, reclaiming it first if the holder is stale.
func (l *RunLock) Acquire() error {
	if info, err := l.read(); err == nil {
		if time.Since(info.StartTime) < l.staleTimeout {
			return fmt.Errorf("archive is locked by pid %d on %s since %s",
				info.PID, info.Hostname, info.StartTime.Format(time.RFC3339))
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	hostname, _ := os.Hostname()
	info := Info{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
	}

	// O_EXCL keeps two runs racing for the lock from both winning.
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("archive is locked by another run")
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	encodeErr := json.NewEncoder(file).Encode(info)
	closeErr := file.Close()
	if encodeErr != nil || closeErr != nil {
		os.Remove(l.path)
		if encodeErr == nil {
			encodeErr = closeErr
		}
		return fmt.Errorf("failed to write lock file: %w", encodeErr)
	}

	l.held = true
	return nil
}

// Release removes the lock file. Only the acquiring instance may release.
func (l *RunLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Holder returns the current lock holder, if any.
func (l *RunLock) Holder() (*Info, error) {
	info, err := l.read()
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (l *RunLock) read() (Info, error) {
	var info Info
	data, err := os.ReadFile(l.path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("malformed lock file: %w", err)
	}
	return info, nil
}
