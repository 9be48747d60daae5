package cmd

import (
	"context"

	"github.com/gamesave/savesync/pkg/engine"
	"github.com/gamesave/savesync/pkg/flagparse"
	"github.com/gamesave/savesync/pkg/planner"
	"github.com/gamesave/savesync/pkg/plog"
)

// RunList handles the logic for the list command. It reports the state of
// every configured save mapping without copying anything.
func RunList(ctx context.Context, flagMap map[string]interface{}) error {
	runConfig, err := loadRunConfig(flagparse.List, flagMap)
	if err != nil {
		return err
	}

	if len(runConfig.Games) == 0 {
		plog.Warn("No games configured.")
		return nil
	}

	// List never writes.
	runConfig.Runtime.DryRun = true

	syncPlan, err := planner.GenerateSyncPlan(runConfig)
	if err != nil {
		return err
	}

	runner := engine.NewRunner(syncPlan)
	return runner.ExecuteList(ctx, syncPlan)
}
