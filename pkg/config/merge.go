package config

import (
	"github.com/gamesave/savesync/pkg/flagparse"
	"github.com/gamesave/savesync/pkg/plog"
)

// MergeConfigWithFlags overlays the configuration values from flags on top of a base
// configuration. It iterates over the setFlags map, which contains only the flags
// explicitly provided by the user on the command line.
func MergeConfigWithFlags(command flagparse.Command, base Config, setFlags map[string]any) Config {
	merged := base

	for name, value := range setFlags {
		switch name {
		case "remote":
			merged.RemoteRoot = value.(string)
		case "local":
			merged.LocalRoot = value.(string)
		case "config":
			// Consumed before loading; nothing to merge.
		case "log-level":
			merged.LogLevel = value.(string)
		case "dry-run":
			merged.Runtime.DryRun = value.(bool)
		case "metrics":
			merged.Runtime.Metrics = value.(bool)
		case "game-workers":
			merged.Sync.GameWorkers = value.(int)
		case "buffer-size-kb":
			merged.Sync.BufferSizeKB = value.(int)
		case "retry-count":
			merged.Sync.RetryCount = value.(int)
		case "retry-wait":
			merged.Sync.RetryWaitSeconds = value.(int)
		case "mod-time-window":
			merged.Sync.ModTimeWindowSeconds = value.(int)
		case "no-notify":
			merged.Notify.Enabled = !value.(bool)
		case "notify-command":
			merged.Notify.Command = value.(string)
		case "archive":
			merged.Archive.Enabled = value.(bool)
		case "archive-format":
			merged.Archive.Format = value.(string)
		case "archive-dir":
			merged.Archive.Dir = value.(string)
		case "archive-keep":
			merged.Archive.Keep = value.(int)
		case "user-exclude-files":
			merged.Sync.UserExcludeFiles = value.([]string)
		case "pre-sync-hooks":
			merged.Hooks.PreSync = value.([]string)
		case "post-sync-hooks":
			merged.Hooks.PostSync = value.([]string)
		case "force", "default":
			// Init-only switches, handled by the command itself.
		default:
			plog.Debug("unhandled flag in MergeConfigWithFlags", "flag", name)
		}
	}
	return merged
}
