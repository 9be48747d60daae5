package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gamesave/savesync/pkg/buildinfo"
	"github.com/gamesave/savesync/pkg/config"
	"github.com/gamesave/savesync/pkg/flagparse"
	"github.com/gamesave/savesync/pkg/lockfile"
	"github.com/gamesave/savesync/pkg/plog"
	"github.com/gamesave/savesync/pkg/preflight"
)

// RunInit handles the logic for the 'init' command.
func RunInit(ctx context.Context, flagMap map[string]interface{}) error {
	absRemoteRoot, err := resolveRemoteRoot(flagMap)
	if err != nil {
		return err
	}

	var baseConfig config.Config

	// Check if init-default is set
	initDefault := false
	if v, ok := flagMap["default"]; ok {
		initDefault = v.(bool)
	}

	if initDefault {
		// Check for force flag to bypass confirmation
		force := false
		if f, ok := flagMap["force"]; ok {
			force = f.(bool)
		}

		if !force {
			absConfigFilePath := filepath.Join(absRemoteRoot, config.ConfigFileName)
			if _, err := os.Stat(absConfigFilePath); err == nil {
				fmt.Printf("WARNING: Configuration file already exists at %s.\n", absConfigFilePath)
				fmt.Printf("Using -default will overwrite it with default values. All custom settings will be lost.\n")
				if !PromptForConfirmation("Are you sure you want to continue?", false) {
					plog.Info(buildinfo.Name + " init operation canceled.")
					return nil
				}
			}
		}
		baseConfig = config.NewDefault()
		baseConfig.RemoteRoot = absRemoteRoot
	} else {
		// Try to load existing config to preserve settings.
		// If it fails (e.g. corrupt JSON), we fall back to defaults.
		// Note: config.Load returns NewDefault() if the file simply doesn't exist.
		baseConfig, err = config.Load(absRemoteRoot)
		if err != nil {
			plog.Warn("Could not load existing configuration, starting with defaults.", "reason", err)
			baseConfig = config.NewDefault()
			baseConfig.RemoteRoot = absRemoteRoot
		}
	}

	// Create a config from base merged with user flags.
	runConfig := config.MergeConfigWithFlags(flagparse.Init, baseConfig, flagMap)

	// CRITICAL: Validate the config for the run
	if err := runConfig.Validate(); err != nil {
		return err
	}

	startTime := time.Now()

	// 1. Preflight Checks
	// Ensure the remote root exists and is writable before placing the config there.
	validator := preflight.NewValidator()
	pfPlan := &preflight.Plan{
		LocalAccessible:  false,
		RemoteAccessible: true,
		RemoteWritable:   true,
		MountCheck:       true,
		DryRun:           runConfig.Runtime.DryRun,
	}
	if err := validator.Run(ctx, "", runConfig.RemoteRoot, pfPlan); err != nil {
		return fmt.Errorf("initialization preflight failed: %w", err)
	}

	if runConfig.Runtime.DryRun {
		plog.Info("[DRY RUN] Initialization complete. No changes made.")
		return nil
	}

	// 2. Acquire Lock
	// Ensure exclusive access to the remote root.
	appID := fmt.Sprintf("savesync-init:%s", runConfig.RemoteRoot)
	lock, err := lockfile.Acquire(ctx, runConfig.RemoteRoot, appID)
	if err != nil {
		return fmt.Errorf("failed to acquire lock on remote root: %w", err)
	}
	defer lock.Release()

	// 3. Generate Config
	if err := config.Generate(runConfig); err != nil {
		return fmt.Errorf("failed to generate config file: %w", err)
	}

	duration := time.Since(startTime).Round(time.Millisecond)
	plog.Info(buildinfo.Name+" remote root successfully initialized.", "duration", duration)
	return nil
}

// PromptForConfirmation asks a yes/no question on stdin and returns the
// answer. An empty line returns defaultYes.
func PromptForConfirmation(prompt string, defaultYes bool) bool {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Printf("%s %s: ", prompt, suffix)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return defaultYes
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	default:
		return false
	}
}
