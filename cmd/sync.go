package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gamesave/savesync/pkg/buildinfo"
	"github.com/gamesave/savesync/pkg/config"
	"github.com/gamesave/savesync/pkg/engine"
	"github.com/gamesave/savesync/pkg/flagparse"
	"github.com/gamesave/savesync/pkg/planner"
	"github.com/gamesave/savesync/pkg/plog"
	"github.com/gamesave/savesync/pkg/util"
)

// RunSync handles the logic for the main sync execution.
func RunSync(ctx context.Context, flagMap map[string]interface{}) error {
	runConfig, err := loadRunConfig(flagparse.Sync, flagMap)
	if err != nil {
		return err
	}

	if len(runConfig.Games) == 0 {
		plog.Warn("No games configured, nothing to sync.", "config", filepath.Join(runConfig.RemoteRoot, config.ConfigFileName))
		return nil
	}

	// Get the Plan
	syncPlan, err := planner.GenerateSyncPlan(runConfig)
	if err != nil {
		return err
	}

	// Create the runner and execute the plan
	runner := engine.NewRunner(syncPlan)

	startTime := time.Now()
	err = runner.ExecuteSync(ctx, syncPlan)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		return err // The error will be logged with full details by main()
	}
	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration)
	return nil
}

// loadRunConfig resolves the remote root, loads the configuration next to it
// (or from an explicit -config path), merges the set flags over it and
// validates the result.
func loadRunConfig(command flagparse.Command, flagMap map[string]interface{}) (config.Config, error) {
	absRemoteRoot, err := resolveRemoteRoot(flagMap)
	if err != nil {
		return config.Config{}, err
	}

	var loadedConfig config.Config
	if configPath, ok := flagMap["config"].(string); ok && configPath != "" {
		loadedConfig, err = config.LoadFile(configPath, absRemoteRoot)
	} else {
		loadedConfig, err = config.Load(absRemoteRoot)
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Merge the flag values over the loaded config to get the final run config.
	runConfig := config.MergeConfigWithFlags(command, loadedConfig, flagMap)

	// CRITICAL: Validate the config for the run
	if err := runConfig.Validate(); err != nil {
		return config.Config{}, err
	}

	// Set the global log level based on the final configuration.
	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))

	// Log the Summary
	runConfig.LogSummary()

	return runConfig, nil
}

// DefaultRemoteRoot is the remote save root assumed when neither the -remote
// flag nor the SAVESYNC_REMOTE environment variable is set. It keeps plain
// `savesync sync` invocations working on a standard Dropbox setup.
const DefaultRemoteRoot = "~/Dropbox/saves"

// resolveRemoteRoot returns the absolute remote save root for this run.
// Resolution order: -remote flag, SAVESYNC_REMOTE, DefaultRemoteRoot.
func resolveRemoteRoot(flagMap map[string]interface{}) (string, error) {
	remoteRoot, ok := flagMap["remote"].(string)
	if !ok || remoteRoot == "" {
		remoteRoot = os.Getenv("SAVESYNC_REMOTE")
	}
	if remoteRoot == "" {
		remoteRoot = DefaultRemoteRoot
	}

	expanded, err := util.ExpandPath(remoteRoot)
	if err != nil {
		return "", fmt.Errorf("could not expand remote root %s: %w", remoteRoot, err)
	}
	absRemoteRoot, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("could not determine absolute path for remote root %s: %w", remoteRoot, err)
	}
	return absRemoteRoot, nil
}
