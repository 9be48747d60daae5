// Package savearchive keeps compressed copies of saves that are about to be
// overwritten by a sync.
//
// The reconciliation policy is last-writer-wins with no merge, so a wrong
// pick silently discards one side's progress. Archiving the replaced save
// before every overwrite makes that recoverable: the old bytes live on as a
// timestamped archive under the configured archive directory, pruned to the
// newest N per save.
package savearchive

import (
	"fmt"
	"time"

	"github.com/gamesave/savesync/pkg/hints"
	"github.com/gamesave/savesync/pkg/util"
)

// ErrDisabled is returned when archiving is turned off.
var ErrDisabled = hints.New("save archiving is disabled")

// Format selects the archive container and compression.
type Format int

const (
	TarGz Format = iota
	TarZst
	Zip
)

var formatToString = map[Format]string{
	TarGz:  "tar.gz",
	TarZst: "tar.zst",
	Zip:    "zip",
}

var stringToFormat = util.InvertMap(formatToString)

func (f Format) String() string {
	if str, ok := formatToString[f]; ok {
		return str
	}
	return fmt.Sprintf("unknown_format(%d)", int(f))
}

// Extension returns the file extension for the format, including the leading dot.
func (f Format) Extension() string {
	return "." + f.String()
}

// ParseFormat converts a textual archive format from the config file.
func ParseFormat(s string) (Format, error) {
	if format, ok := stringToFormat[s]; ok {
		return format, nil
	}
	return TarGz, fmt.Errorf("invalid archive format: %q. Must be 'tar.gz', 'tar.zst', or 'zip'", s)
}

// Plan holds the archive settings for a sync run.
type Plan struct {
	Enabled bool
	Format  Format

	// Dir is the root directory for archives; each game gets a subdirectory.
	Dir string

	// Keep is the number of archives retained per save. 0 keeps all.
	Keep int

	// Global Flags
	DryRun bool
}

// archiveTimeFormat is a compact UTC timestamp used in archive file names.
// It sorts chronologically as a plain string, which the pruning relies on.
const archiveTimeFormat = "20060102T150405Z"

func archiveFileName(saveBase string, t time.Time, format Format) string {
	return saveBase + "." + t.UTC().Format(archiveTimeFormat) + format.Extension()
}
