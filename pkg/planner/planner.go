// Package planner converts a validated configuration into the concrete plans
// executed by the engine. All parsing and policy decisions happen here so the
// executing packages only ever see ready-to-run plans.
package planner

import (
	"time"

	"github.com/gamesave/savesync/pkg/config"
	"github.com/gamesave/savesync/pkg/hook"
	"github.com/gamesave/savesync/pkg/notify"
	"github.com/gamesave/savesync/pkg/preflight"
	"github.com/gamesave/savesync/pkg/reconcile"
	"github.com/gamesave/savesync/pkg/savearchive"
	"github.com/gamesave/savesync/pkg/savename"
)

type SyncPlan struct {
	DryRun  bool
	Metrics bool

	LocalRoot  string
	RemoteRoot string

	BufferSizeKB int
	RetryCount   int
	RetryWait    time.Duration

	Preflight *preflight.Plan
	Reconcile *reconcile.Plan
	Archive   *savearchive.Plan
	Notify    *notify.Plan
	Hooks     *hook.Plan
}

// GenerateSyncPlan builds the full plan for one sync run.
func GenerateSyncPlan(cfg config.Config) (*SyncPlan, error) {

	// Global Flags
	dryRun := cfg.Runtime.DryRun
	metrics := cfg.Runtime.Metrics

	games, err := gamePlans(cfg)
	if err != nil {
		return nil, err
	}

	var archiveFormat savearchive.Format
	if cfg.Archive.Enabled {
		archiveFormat, err = savearchive.ParseFormat(cfg.Archive.Format)
		if err != nil {
			return nil, err
		}
	}

	// finish the plan
	return &SyncPlan{
		DryRun:  dryRun,
		Metrics: metrics,

		LocalRoot:  cfg.LocalRoot,
		RemoteRoot: cfg.RemoteRoot,

		BufferSizeKB: cfg.Sync.BufferSizeKB,
		RetryCount:   cfg.Sync.RetryCount,
		RetryWait:    time.Duration(cfg.Sync.RetryWaitSeconds) * time.Second,

		Preflight: &preflight.Plan{
			LocalAccessible:  cfg.LocalRoot != "",
			RemoteAccessible: true,
			RemoteWritable:   true,
			MountCheck:       true,
			DryRun:           dryRun,
		},
		Reconcile: &reconcile.Plan{
			Games:         games,
			ModTimeWindow: time.Duration(cfg.Sync.ModTimeWindowSeconds) * time.Second,
			GameWorkers:   cfg.Sync.GameWorkers,
			DryRun:        dryRun,
			Metrics:       metrics,
		},
		Archive: &savearchive.Plan{
			Enabled: cfg.Archive.Enabled,
			Format:  archiveFormat,
			Dir:     cfg.Archive.Dir,
			Keep:    cfg.Archive.Keep,
			DryRun:  dryRun,
		},
		Notify: &notify.Plan{
			Enabled: cfg.Notify.Enabled,
			Command: cfg.Notify.Command,
		},
		Hooks: &hook.Plan{
			PreSyncCommands:  cfg.Hooks.PreSync,
			PostSyncCommands: cfg.Hooks.PostSync,
			DryRun:           dryRun,
		},
	}, nil
}

// gamePlans converts the configured games into reconcile plans, seeding every
// game's exclusion patterns with the tool's own artifacts.
func gamePlans(cfg config.Config) ([]reconcile.GamePlan, error) {
	excludeFiles := cfg.Sync.ExcludeFiles()

	games := make([]reconcile.GamePlan, 0, len(cfg.Games))
	for _, game := range cfg.Games {
		mode, err := savename.ParseMode(game.NamingMode)
		if err != nil {
			return nil, err
		}
		games = append(games, reconcile.GamePlan{
			Name:       game.Name,
			LocalDir:   game.LocalPath,
			RemoteDir:  game.RemotePath,
			SaveSuffix: game.SaveSuffix,
			NameRule: savename.Rule{
				Mode:           mode,
				IgnorePrefixes: game.IgnorePrefixes,
			},
			ExcludeFiles: excludeFiles,
		})
	}
	return games, nil
}
