package reconcile

import (
	"fmt"
	"os"
	"time"
)

// FileState is a snapshot of one side of a save mapping. It is derived from
// the filesystem on demand and never cached across runs.
type FileState struct {
	Path    string
	Exists  bool
	ModTime time.Time
	Size    int64
	Mode    os.FileMode
}

// StatFile captures the current state of a path. A missing file is a normal
// state (Exists=false), not an error.
func StatFile(path string) (FileState, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileState{Path: path}, nil
		}
		return FileState{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return FileState{}, fmt.Errorf("%s is not a regular file (%s)", path, info.Mode())
	}
	return FileState{
		Path:    path,
		Exists:  true,
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Mode:    info.Mode(),
	}, nil
}

// Action is the outcome of comparing the two sides of a save mapping.
// At most one copy is performed per mapping and run.
type Action int

const (
	// ActionNone means the mapping is already synchronized (or empty on both sides).
	ActionNone Action = iota
	// ActionCopyToRemote copies the local save over the remote side.
	ActionCopyToRemote
	// ActionCopyToLocal copies the remote save over the local side.
	ActionCopyToLocal
	// ActionConflict means both sides carry the same modification time but
	// different content. The policy trusts timestamps only, so neither side
	// can be declared newer and no copy is performed.
	ActionConflict
)

var actionToString = map[Action]string{
	ActionNone:         "none",
	ActionCopyToRemote: "copy-to-remote",
	ActionCopyToLocal:  "copy-to-local",
	ActionConflict:     "conflict",
}

func (a Action) String() string {
	if str, ok := actionToString[a]; ok {
		return str
	}
	return fmt.Sprintf("unknown_action(%d)", int(a))
}

// Decide is the reconciliation policy: a pure decision from one snapshot of
// the two file states to at most one action.
//
// A strictly newer modification time wins. Times within modTimeWindow of each
// other count as equal so that filesystems with coarse timestamp resolution
// (and cloud agents that round them) do not cause copy churn. Equal times
// with equal sizes mean "already synchronized"; equal times with different
// sizes are a conflict this policy cannot resolve.
func Decide(local, remote FileState, modTimeWindow time.Duration) Action {
	switch {
	case !local.Exists && !remote.Exists:
		return ActionNone
	case local.Exists && !remote.Exists:
		return ActionCopyToRemote
	case !local.Exists && remote.Exists:
		return ActionCopyToLocal
	}

	if modTimeEqual(local.ModTime, remote.ModTime, modTimeWindow) {
		if local.Size != remote.Size {
			return ActionConflict
		}
		return ActionNone
	}
	if local.ModTime.After(remote.ModTime) {
		return ActionCopyToRemote
	}
	return ActionCopyToLocal
}

// modTimeEqual reports whether two modification times lie within window of
// each other. The comparison is over the absolute difference, so two times
// that straddle a rounding boundary still count as equal. A zero window
// demands exact equality.
func modTimeEqual(a, b time.Time, window time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}
