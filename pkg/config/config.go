package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gamesave/savesync/pkg/buildinfo"
	"github.com/gamesave/savesync/pkg/lockfile"
	"github.com/gamesave/savesync/pkg/notify"
	"github.com/gamesave/savesync/pkg/plog"
	"github.com/gamesave/savesync/pkg/savearchive"
	"github.com/gamesave/savesync/pkg/savename"
	"github.com/gamesave/savesync/pkg/util"
)

// ConfigFileName is the name of the configuration file, looked up in the
// remote save root so every machine sharing the root shares the game list.
const ConfigFileName = "savesync.config.json"

// DefaultArchiveDirName is the archive directory created under the remote
// root when no explicit archive dir is configured.
const DefaultArchiveDirName = "SaveSync_Archive"

// systemExcludeFilePatterns is a slice of file patterns that must always be
// excluded from reconciliation for the system to function correctly.
var systemExcludeFilePatterns = []string{
	ConfigFileName,
	lockfile.LockFileName,
	".savesync-*.tmp",
	".savesync-writetest.tmp",
}

// GameConfig describes one game whose saves are kept in sync.
type GameConfig struct {
	Name string `json:"name"`
	// LocalPath and RemotePath are the save directories on each side.
	// Relative paths are resolved against localRoot / remoteRoot.
	LocalPath  string `json:"localPath"`
	RemotePath string `json:"remotePath"`
	// SaveSuffix restricts reconciliation to files with this suffix.
	// Empty means every regular file in the directory is a save.
	SaveSuffix string `json:"saveSuffix,omitempty"`
	// NamingMode selects how the save identity is derived from a filename:
	// 'basename' (default) or 'prefix-before-last-space'.
	NamingMode string `json:"namingMode,omitempty"`
	// IgnorePrefixes marks saves that are never synced (e.g. "autosave_").
	IgnorePrefixes []string `json:"ignorePrefixes,omitempty"`
}

type NotifyConfig struct {
	Enabled bool   `json:"enabled"`
	Command string `json:"command"`
}

type ArchiveConfig struct {
	Enabled bool   `json:"enabled"`
	Format  string `json:"format"`
	// Dir is the archive root. Empty resolves to <remoteRoot>/SaveSync_Archive.
	Dir string `json:"dir"`
	// Keep is the number of archives retained per save. 0 keeps all.
	Keep int `json:"keep"`
}

type SyncConfig struct {
	ModTimeWindowSeconds int `json:"modTimeWindowSeconds" comment:"Time window in seconds to consider save modification times equal. Handles filesystem timestamp precision differences. Default is 1s. 0 means exact match."`
	RetryCount           int `json:"retryCount"`
	RetryWaitSeconds     int `json:"retryWaitSeconds"`
	GameWorkers          int `json:"gameWorkers" comment:"Number of games reconciled concurrently. 1 keeps runs strictly sequential in configuration order."`
	BufferSizeKB         int `json:"bufferSizeKB" comment:"Size of the I/O buffer in kilobytes for save copies and archives. Default is 256 (256KB)."`
	// Note: omitempty is intentionally not used for user-configurable slices
	// so that they appear in the generated config file for better discoverability.
	UserExcludeFiles []string `json:"userExcludeFiles"`
}

type HooksConfig struct {
	// PreSync is a list of shell commands to execute before reconciliation begins.
	// SECURITY: These commands are executed as provided. Ensure they are from a trusted source.
	PreSync []string `json:"preSync"`
	// PostSync is a list of shell commands to execute after reconciliation ends.
	// SECURITY: These commands are executed as provided. Ensure they are from a trusted source.
	PostSync []string `json:"postSync"`
}

type RuntimeConfig struct {
	DryRun  bool
	Metrics bool
}

type Config struct {
	Version    string        `json:"version"`
	LogLevel   string        `json:"logLevel"`
	LocalRoot  string        `json:"localRoot"`
	RemoteRoot string        `json:"-"` // Always taken from the invocation, never from the file.
	Runtime    RuntimeConfig `json:"-"` // Never added to config file
	Games      []GameConfig  `json:"games"`
	Sync       SyncConfig    `json:"sync"`
	Notify     NotifyConfig  `json:"notifications"`
	Archive    ArchiveConfig `json:"archive"`
	Hooks      HooksConfig   `json:"hooks"`
}

// NewDefault creates and returns a Config struct with sensible default values.
func NewDefault() Config {
	return Config{
		Version:    buildinfo.Version,
		LogLevel:   "info", // Default log level.
		LocalRoot:  "",     // Optional; games may use absolute paths.
		RemoteRoot: "",     // Intentionally empty to force user configuration.
		Runtime: RuntimeConfig{
			DryRun:  false,
			Metrics: true,
		},
		Games: []GameConfig{}, // Intentionally empty to force user configuration.
		Sync: SyncConfig{
			ModTimeWindowSeconds: 1,   // Dropbox and coarse filesystems round timestamps.
			RetryCount:           3,   // Default retries on failure.
			RetryWaitSeconds:     5,   // Default wait time between retries.
			GameWorkers:          1,   // Sequential by default for deterministic runs.
			BufferSizeKB:         256, // Default to 256KB buffer. Keep it between 64KB-4MB.
			UserExcludeFiles:     []string{},
		},
		Notify: NotifyConfig{
			Enabled: true,
			Command: notify.DefaultCommand,
		},
		Archive: ArchiveConfig{
			Enabled: true, // Replaced saves are recoverable by default.
			Format:  "tar.gz",
			Dir:     "", // Resolved against the remote root in Validate.
			Keep:    5,
		},
		Hooks: HooksConfig{
			PreSync:  []string{},
			PostSync: []string{},
		},
	}
}

// Load attempts to load a configuration from "savesync.config.json" in the
// remote root. If the file doesn't exist, it returns the default config
// without an error. If the file exists but fails to parse, it returns an
// error and a zero-value config.
func Load(remoteRoot string) (Config, error) {
	absRemoteRoot, err := filepath.Abs(remoteRoot)
	if err != nil {
		return Config{}, fmt.Errorf("could not determine absolute path for remote root %s: %w", remoteRoot, err)
	}

	return LoadFile(filepath.Join(absRemoteRoot, ConfigFileName), absRemoteRoot)
}

// LoadFile loads a configuration from an explicit path, keeping remoteRoot as
// the root the invocation targets.
func LoadFile(configPath, remoteRoot string) (Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := NewDefault()
			cfg.RemoteRoot = remoteRoot
			return cfg, nil // Config file doesn't exist, which is a normal case.
		}
		return Config{}, fmt.Errorf("error opening config file %s: %w", configPath, err)
	}
	defer file.Close()

	plog.Info("Loading configuration", "path", configPath)
	// Start with default values, then overwrite with the file's content.
	// This makes the config loading resilient to missing fields in the JSON file.
	config := NewDefault()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", configPath, err)
	}

	config.RemoteRoot = remoteRoot

	// At this point our config has been migrated if needed so override the version in the struct
	if config.Version != buildinfo.Version {
		config.Version = buildinfo.Version
	}
	return config, nil
}

// Generate creates or overwrites a savesync.config.json file in the config's
// remote root.
func Generate(configToGenerate Config) error {
	configPath := filepath.Join(configToGenerate.RemoteRoot, ConfigFileName)
	jsonData, err := json.MarshalIndent(configToGenerate, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config to JSON: %w", err)
	}

	if err := os.WriteFile(configPath, jsonData, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	plog.Info("Successfully saved config file", "path", configPath)
	return nil
}

// Validate checks the configuration for logical errors and inconsistencies,
// expands tilde prefixes, and resolves relative game paths against the roots.
func (c *Config) Validate() error {
	if c.RemoteRoot == "" {
		return fmt.Errorf("remote root cannot be empty")
	}

	var err error
	c.RemoteRoot, err = util.ExpandPath(c.RemoteRoot)
	if err != nil {
		return fmt.Errorf("could not expand remote root: %w", err)
	}
	c.RemoteRoot = filepath.Clean(c.RemoteRoot)

	if c.LocalRoot != "" {
		c.LocalRoot, err = util.ExpandPath(c.LocalRoot)
		if err != nil {
			return fmt.Errorf("could not expand local root: %w", err)
		}
		c.LocalRoot = filepath.Clean(c.LocalRoot)
	}

	seenNames := make(map[string]struct{}, len(c.Games))
	for i := range c.Games {
		game := &c.Games[i]
		if game.Name == "" {
			return fmt.Errorf("games[%d].name cannot be empty", i)
		}
		if _, ok := seenNames[game.Name]; ok {
			return fmt.Errorf("duplicate game name %q", game.Name)
		}
		seenNames[game.Name] = struct{}{}

		game.LocalPath, err = resolvePath(game.LocalPath, c.LocalRoot)
		if err != nil {
			return fmt.Errorf("game %q: invalid localPath: %w", game.Name, err)
		}
		game.RemotePath, err = resolvePath(game.RemotePath, c.RemoteRoot)
		if err != nil {
			return fmt.Errorf("game %q: invalid remotePath: %w", game.Name, err)
		}
		if game.LocalPath == game.RemotePath {
			return fmt.Errorf("game %q: localPath and remotePath cannot be the same", game.Name)
		}
		if _, err := savename.ParseMode(game.NamingMode); err != nil {
			return fmt.Errorf("game %q: %w", game.Name, err)
		}
		if strings.ContainsAny(game.SaveSuffix, `\/`) {
			return fmt.Errorf("game %q: saveSuffix cannot contain path separators", game.Name)
		}
	}

	if c.Sync.ModTimeWindowSeconds < 0 {
		return fmt.Errorf("sync.modTimeWindowSeconds cannot be negative")
	}
	if c.Sync.RetryCount < 0 {
		return fmt.Errorf("sync.retryCount cannot be negative")
	}
	if c.Sync.RetryWaitSeconds < 0 {
		return fmt.Errorf("sync.retryWaitSeconds cannot be negative")
	}
	if c.Sync.GameWorkers < 1 {
		return fmt.Errorf("sync.gameWorkers must be at least 1")
	}
	if c.Sync.BufferSizeKB <= 0 {
		return fmt.Errorf("sync.bufferSizeKB must be greater than 0")
	}

	if c.Archive.Enabled {
		if _, err := savearchive.ParseFormat(c.Archive.Format); err != nil {
			return err
		}
		if c.Archive.Keep < 0 {
			return fmt.Errorf("archive.keep cannot be negative")
		}
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = filepath.Join(c.RemoteRoot, DefaultArchiveDirName)
	} else {
		c.Archive.Dir, err = resolvePath(c.Archive.Dir, c.RemoteRoot)
		if err != nil {
			return fmt.Errorf("invalid archive.dir: %w", err)
		}
	}

	if err := validateGlobPatterns("userExcludeFiles", c.Sync.UserExcludeFiles); err != nil {
		return err
	}
	return nil
}

// resolvePath expands a tilde prefix and resolves relative paths against root.
func resolvePath(path, root string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	expanded, err := util.ExpandPath(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(expanded) {
		if root == "" {
			return "", fmt.Errorf("relative path %q requires a configured root", path)
		}
		expanded = filepath.Join(root, expanded)
	}
	return filepath.Clean(expanded), nil
}

// LogSummary prints a user-friendly summary of the configuration.
func (c *Config) LogSummary() {
	logArgs := []interface{}{
		"log_level", c.LogLevel,
		"remote_root", c.RemoteRoot,
		"dry_run", c.Runtime.DryRun,
		"metrics", c.Runtime.Metrics,
		"games", len(c.Games),
		"game_workers", c.Sync.GameWorkers,
		"mod_time_window_s", c.Sync.ModTimeWindowSeconds,
		"buffer_size_kb", c.Sync.BufferSizeKB,
	}
	if c.LocalRoot != "" {
		logArgs = append(logArgs, "local_root", c.LocalRoot)
	}
	if c.Notify.Enabled {
		logArgs = append(logArgs, "notifications", fmt.Sprintf("enabled (c:%s)", c.Notify.Command))
	}
	if c.Archive.Enabled {
		archiveSummary := fmt.Sprintf("enabled (f:%s k:%d)", c.Archive.Format, c.Archive.Keep)
		logArgs = append(logArgs, "archive", archiveSummary)
	}
	if finalExcludeFiles := c.Sync.ExcludeFiles(); len(finalExcludeFiles) > 0 {
		logArgs = append(logArgs, "exclude_files", strings.Join(finalExcludeFiles, ", "))
	}
	if len(c.Hooks.PreSync) > 0 {
		logArgs = append(logArgs, "pre_sync_hooks", strings.Join(c.Hooks.PreSync, "; "))
	}
	if len(c.Hooks.PostSync) > 0 {
		logArgs = append(logArgs, "post_sync_hooks", strings.Join(c.Hooks.PostSync, "; "))
	}
	plog.Info("Configuration loaded", logArgs...)
}

// validateGlobPatterns checks if a list of strings are valid glob patterns.
func validateGlobPatterns(fieldName string, patterns []string) error {
	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid glob pattern for %s: %q - %w", fieldName, pattern, err)
		}
	}
	return nil
}

// ExcludeFiles returns the final, combined slice of file exclusion patterns,
// including non-overridable system patterns and user-configured patterns.
// It automatically handles deduplication.
func (s *SyncConfig) ExcludeFiles() []string {
	return util.MergeAndDeduplicate(systemExcludeFilePatterns, s.UserExcludeFiles)
}
