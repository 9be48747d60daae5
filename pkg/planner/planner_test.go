package planner

import (
	"slices"
	"testing"
	"time"

	"github.com/gamesave/savesync/pkg/config"
	"github.com/gamesave/savesync/pkg/savearchive"
	"github.com/gamesave/savesync/pkg/savename"
)

func newTestConfig() config.Config {
	cfg := config.NewDefault()
	cfg.LocalRoot = "/local/saves"
	cfg.RemoteRoot = "/remote/saves"
	cfg.Archive.Dir = "/remote/saves/SaveSync_Archive"
	cfg.Games = []config.GameConfig{
		{
			Name:       "testgame",
			LocalPath:  "/local/saves/testgame",
			RemotePath: "/remote/saves/testgame",
			SaveSuffix: ".sav",
			NamingMode: "basename",
		},
	}
	return cfg
}

func TestGenerateSyncPlan(t *testing.T) {
	t.Run("Wires config values into the plan", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.Sync.ModTimeWindowSeconds = 2
		cfg.Sync.RetryWaitSeconds = 7
		cfg.Sync.GameWorkers = 3
		cfg.Hooks.PreSync = []string{"echo pre"}

		plan, err := GenerateSyncPlan(cfg)
		if err != nil {
			t.Fatalf("GenerateSyncPlan failed: %v", err)
		}

		if plan.Reconcile.ModTimeWindow != 2*time.Second {
			t.Errorf("expected mod time window 2s, got %v", plan.Reconcile.ModTimeWindow)
		}
		if plan.RetryWait != 7*time.Second {
			t.Errorf("expected retry wait 7s, got %v", plan.RetryWait)
		}
		if plan.Reconcile.GameWorkers != 3 {
			t.Errorf("expected 3 game workers, got %d", plan.Reconcile.GameWorkers)
		}
		if len(plan.Hooks.PreSyncCommands) != 1 || plan.Hooks.PreSyncCommands[0] != "echo pre" {
			t.Errorf("expected pre-sync hooks to carry over, got %v", plan.Hooks.PreSyncCommands)
		}
		if plan.Archive.Format != savearchive.TarGz {
			t.Errorf("expected tar.gz archive format, got %v", plan.Archive.Format)
		}
		if !plan.Preflight.LocalAccessible {
			t.Error("expected local accessibility check when a local root is set")
		}
	})

	t.Run("Skips the local root check when no root is configured", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.LocalRoot = ""

		plan, err := GenerateSyncPlan(cfg)
		if err != nil {
			t.Fatalf("GenerateSyncPlan failed: %v", err)
		}

		if plan.Preflight.LocalAccessible {
			t.Error("expected no local accessibility check without a local root")
		}
		if !plan.Preflight.RemoteAccessible || !plan.Preflight.RemoteWritable {
			t.Error("expected remote checks to stay enabled")
		}
	})

	t.Run("Seeds every game with the tool's own exclude patterns", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.Sync.UserExcludeFiles = []string{"*.bak"}

		plan, err := GenerateSyncPlan(cfg)
		if err != nil {
			t.Fatalf("GenerateSyncPlan failed: %v", err)
		}

		if len(plan.Reconcile.Games) != 1 {
			t.Fatalf("expected 1 game plan, got %d", len(plan.Reconcile.Games))
		}
		excludes := plan.Reconcile.Games[0].ExcludeFiles
		if !slices.Contains(excludes, config.ConfigFileName) {
			t.Errorf("expected config file in exclude patterns, got %v", excludes)
		}
		if !slices.Contains(excludes, "*.bak") {
			t.Errorf("expected user exclude pattern in game plan, got %v", excludes)
		}
	})

	t.Run("Parses the naming mode into a name rule", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.Games[0].NamingMode = "prefix-before-last-space"
		cfg.Games[0].IgnorePrefixes = []string{"autosave"}

		plan, err := GenerateSyncPlan(cfg)
		if err != nil {
			t.Fatalf("GenerateSyncPlan failed: %v", err)
		}

		rule := plan.Reconcile.Games[0].NameRule
		if rule.Mode != savename.PrefixBeforeLastSpace {
			t.Errorf("expected prefix-before-last-space mode, got %v", rule.Mode)
		}
		if len(rule.IgnorePrefixes) != 1 || rule.IgnorePrefixes[0] != "autosave" {
			t.Errorf("expected ignore prefixes to carry over, got %v", rule.IgnorePrefixes)
		}
	})

	t.Run("Fails on an unknown naming mode", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.Games[0].NamingMode = "bogus"

		if _, err := GenerateSyncPlan(cfg); err == nil {
			t.Error("expected an error for an unknown naming mode, but got nil")
		}
	})

	t.Run("Ignores the archive format when archiving is disabled", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.Archive.Enabled = false
		cfg.Archive.Format = ""

		plan, err := GenerateSyncPlan(cfg)
		if err != nil {
			t.Fatalf("GenerateSyncPlan failed: %v", err)
		}
		if plan.Archive.Enabled {
			t.Error("expected archiving to stay disabled in the plan")
		}
	})
}
