// Package lockfile guards a remote save root against concurrent sync runs.
//
// The lock file lives inside the remote root, so it is itself synced by the
// cloud agent: with some propagation delay it also keeps a second machine
// from reconciling the same tree at the same time. This is best-effort by
// design; the cloud agent itself is never coordinated with.
package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gamesave/savesync/pkg/plog"
	"github.com/gamesave/savesync/pkg/util"
)

// LockFileName is the name of the lock file created in the remote root.
// The '~' prefix marks it as temporary.
const LockFileName = ".~savesync.lock"

// staleTimeout is how old a lock may be before it is considered abandoned.
// A sync run takes seconds; anything this old is a crashed run or a machine
// that went away mid-sync.
// It is a var to allow modification during testing.
var staleTimeout = 15 * time.Minute

// LockContent defines the structure of the data written to the lock file.
type LockContent struct {
	PID      int64     `json:"pid"`
	Hostname string    `json:"hostname"`
	Acquired time.Time `json:"acquired"`
	AppID    string    `json:"appID"`
}

// ErrLockActive is a structured error returned when a lock is already held by
// another process (possibly on another machine).
type ErrLockActive struct {
	PID       int64
	Hostname  string
	AppID     string
	TimeSince time.Duration
}

// Error implements the error interface for ErrLockActive.
func (e *ErrLockActive) Error() string {
	return fmt.Sprintf("lock is active, held by PID %d on host '%s' (App: %s), acquired %s ago", e.PID, e.Hostname, e.AppID, e.TimeSince.Truncate(time.Second))
}

// ErrCorruptLockFile indicates that the lock file on disk is unreadable,
// either empty or containing invalid JSON.
var ErrCorruptLockFile = errors.New("lock file is corrupt or empty")

// Lock manages the state of an acquired lock file.
type Lock struct {
	path string
	held bool
}

// Acquire attempts to acquire the lock in dirPath.
// It returns (nil, *ErrLockActive) if a live lock is already held, and takes
// over stale or corrupt locks after logging.
func Acquire(ctx context.Context, dirPath, appID string) (*Lock, error) {
	absLockFilePath := filepath.Join(dirPath, LockFileName)

	// A second attempt is allowed so a stale lock can be removed and the
	// acquisition retried.
	const maxAttempts = 2

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lock, err := tryAcquire(absLockFilePath, appID)
		if err == nil {
			return lock, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file %s: %w", absLockFilePath, err)
		}

		// The lock file exists. Decide whether the holder is still live.
		content, readErr := readLockContent(absLockFilePath)
		if readErr != nil {
			if errors.Is(readErr, ErrCorruptLockFile) {
				plog.Warn("Removing corrupt lock file", "path", absLockFilePath)
				if rmErr := os.Remove(absLockFilePath); rmErr != nil && !os.IsNotExist(rmErr) {
					return nil, fmt.Errorf("failed to remove corrupt lock file: %w", rmErr)
				}
				continue
			}
			if os.IsNotExist(readErr) {
				continue // Holder released between our attempts.
			}
			return nil, readErr
		}

		age := time.Since(content.Acquired)
		if age < staleTimeout {
			return nil, &ErrLockActive{
				PID:       content.PID,
				Hostname:  content.Hostname,
				AppID:     content.AppID,
				TimeSince: age,
			}
		}

		plog.Warn("Taking over stale lock", "path", absLockFilePath, "holder", content.Hostname, "age", age.Truncate(time.Second))
		if rmErr := os.Remove(absLockFilePath); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("failed to remove stale lock file: %w", rmErr)
		}
	}
	return nil, fmt.Errorf("failed to acquire lock %s after repeated attempts", absLockFilePath)
}

// tryAcquire attempts the atomic O_EXCL creation of the lock file.
func tryAcquire(absLockFilePath, appID string) (*Lock, error) {
	file, err := os.OpenFile(absLockFilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, util.UserWritableFilePerms)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	content := LockContent{
		PID:      int64(os.Getpid()),
		Hostname: hostname,
		Acquired: time.Now().UTC(),
		AppID:    appID,
	}

	encoder := json.NewEncoder(file)
	if err := encoder.Encode(&content); err != nil {
		file.Close()
		os.Remove(absLockFilePath)
		return nil, fmt.Errorf("failed to write lock content: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(absLockFilePath)
		return nil, fmt.Errorf("failed to close lock file: %w", err)
	}

	return &Lock{path: absLockFilePath, held: true}, nil
}

// readLockContent reads and parses an existing lock file.
func readLockContent(absLockFilePath string) (LockContent, error) {
	data, err := os.ReadFile(absLockFilePath)
	if err != nil {
		return LockContent{}, err
	}
	if len(data) == 0 {
		return LockContent{}, ErrCorruptLockFile
	}

	var content LockContent
	if err := json.Unmarshal(data, &content); err != nil {
		return LockContent{}, fmt.Errorf("%w: %v", ErrCorruptLockFile, err)
	}
	return content, nil
}

// Release removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file %s: %w", l.path, err)
	}
	return nil
}
