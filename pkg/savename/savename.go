// Package savename derives the logical identity of a save file from its
// filename.
//
// Some games write a new file for every save and encode volatile data in the
// name (the current in-game location, a slot counter), while a stable part of
// the name identifies the actual save slot. Pairing saves across two
// directories must happen on that stable identity, not on the raw filename.
package savename

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gamesave/savesync/pkg/hints"
	"github.com/gamesave/savesync/pkg/util"
)

// ErrIgnored is returned when a file matches one of the rule's ignore
// prefixes (e.g. autosaves) and should be left out of reconciliation.
var ErrIgnored = hints.New("save file is ignored by naming rule")

// Mode selects how the save identity is extracted from a filename.
type Mode int

const (
	// Basename uses the file name itself as the save identity.
	Basename Mode = iota
	// PrefixBeforeLastSpace uses everything before the last space in the
	// file name as the identity. Games like Pillars of Eternity append a
	// volatile suffix after a space while the leading part stays constant
	// for the same slot.
	PrefixBeforeLastSpace
)

var modeToString = map[Mode]string{
	Basename:              "basename",
	PrefixBeforeLastSpace: "prefix-before-last-space",
}

var stringToMode = util.InvertMap(modeToString)

func (m Mode) String() string {
	if str, ok := modeToString[m]; ok {
		return str
	}
	return fmt.Sprintf("unknown_mode(%d)", int(m))
}

// ParseMode converts a textual naming mode from the config file.
// The empty string maps to Basename.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return Basename, nil
	}
	if mode, ok := stringToMode[s]; ok {
		return mode, nil
	}
	return Basename, fmt.Errorf("invalid naming mode: %q. Must be 'basename' or 'prefix-before-last-space'", s)
}

// Rule describes how a game derives save identities from filenames.
type Rule struct {
	Mode Mode
	// IgnorePrefixes lists prefixes of the volatile name part that mark a
	// file as not worth syncing (e.g. "autosave_").
	IgnorePrefixes []string
}

// Derive extracts the save identity from a path.
// It returns ErrIgnored (a hint) when the file matches an ignore prefix, and
// a regular error when no identity can be derived from the name.
func (r Rule) Derive(path string) (string, error) {
	base := filepath.Base(path)

	switch r.Mode {
	case PrefixBeforeLastSpace:
		idx := strings.LastIndex(base, " ")
		if idx <= 0 {
			return "", fmt.Errorf("cannot derive save identity from %q: no space in name", base)
		}
		if r.matchesIgnorePrefix(base[idx+1:]) {
			return "", ErrIgnored
		}
		return base[:idx], nil
	default:
		if r.matchesIgnorePrefix(base) {
			return "", ErrIgnored
		}
		return base, nil
	}
}

func (r Rule) matchesIgnorePrefix(s string) bool {
	for _, prefix := range r.IgnorePrefixes {
		if prefix != "" && strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
