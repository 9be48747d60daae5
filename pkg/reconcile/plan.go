package reconcile

import (
	"time"

	"github.com/gamesave/savesync/pkg/savename"
)

// GamePlan holds everything needed to reconcile the saves of a single game.
type GamePlan struct {
	Name       string
	LocalDir   string
	RemoteDir  string
	SaveSuffix string
	NameRule   savename.Rule

	// ExcludeFiles holds glob patterns (matched against the bare file name)
	// for files that must never be treated as saves. The planner always
	// seeds this with the tool's own artifacts.
	ExcludeFiles []string
}

// Plan describes one full reconciliation pass over all configured games.
type Plan struct {
	Games []GamePlan

	// ModTimeWindow is the window within which two modification times are
	// considered equal.
	ModTimeWindow time.Duration

	// GameWorkers is the number of games reconciled concurrently. 1 keeps
	// the pass strictly sequential in configuration order.
	GameWorkers int

	// Global Flags
	DryRun  bool
	Metrics bool
}
