package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gamesave/savesync/pkg/config"
	"github.com/gamesave/savesync/pkg/lockfile"
	"github.com/gamesave/savesync/pkg/planner"
)

// newTestPlan builds a full sync plan over two temp directories with one
// configured game. Notifications are disabled so tests never shell out.
func newTestPlan(t *testing.T) (*planner.SyncPlan, string, string) {
	t.Helper()

	localRoot := t.TempDir()
	remoteRoot := t.TempDir()

	localDir := filepath.Join(localRoot, "testgame")
	remoteDir := filepath.Join(remoteRoot, "testgame")
	for _, dir := range []string{localDir, remoteDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create dir %s: %v", dir, err)
		}
	}

	cfg := config.NewDefault()
	cfg.LocalRoot = localRoot
	cfg.RemoteRoot = remoteRoot
	cfg.Notify.Enabled = false
	cfg.Archive.Dir = filepath.Join(remoteRoot, config.DefaultArchiveDirName)
	cfg.Games = []config.GameConfig{
		{
			Name:       "testgame",
			LocalPath:  localDir,
			RemotePath: remoteDir,
			SaveSuffix: ".sav",
			NamingMode: "basename",
		},
	}

	plan, err := planner.GenerateSyncPlan(cfg)
	if err != nil {
		t.Fatalf("failed to generate sync plan: %v", err)
	}
	// TempDir may live on the system disk, which the mount check rejects.
	plan.Preflight.MountCheck = false
	return plan, localDir, remoteDir
}

func writeSave(t *testing.T, path, content string, modTime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write save %s: %v", path, err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("failed to set mtime on %s: %v", path, err)
	}
}

func readSave(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read save %s: %v", path, err)
	}
	return string(data)
}

func TestExecuteSync(t *testing.T) {
	baseTime := time.Now().Add(-1 * time.Hour).Truncate(time.Second)

	t.Run("Copies the newer save and archives the replaced one", func(t *testing.T) {
		plan, localDir, remoteDir := newTestPlan(t)

		writeSave(t, filepath.Join(localDir, "slot1.sav"), "new", baseTime.Add(10*time.Minute))
		writeSave(t, filepath.Join(remoteDir, "slot1.sav"), "old", baseTime)

		runner := NewRunner(plan)
		if err := runner.ExecuteSync(context.Background(), plan); err != nil {
			t.Fatalf("ExecuteSync failed: %v", err)
		}

		if got := readSave(t, filepath.Join(remoteDir, "slot1.sav")); got != "new" {
			t.Errorf("expected remote save to be replaced, got content %q", got)
		}

		entries, err := os.ReadDir(plan.Archive.Dir)
		if err != nil {
			t.Fatalf("failed to read archive dir: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 archive subdir, got %d", len(entries))
		}
	})

	t.Run("Seeds the remote side for a local only save", func(t *testing.T) {
		plan, localDir, remoteDir := newTestPlan(t)

		writeSave(t, filepath.Join(localDir, "slot1.sav"), "fresh", baseTime)

		runner := NewRunner(plan)
		if err := runner.ExecuteSync(context.Background(), plan); err != nil {
			t.Fatalf("ExecuteSync failed: %v", err)
		}

		if got := readSave(t, filepath.Join(remoteDir, "slot1.sav")); got != "fresh" {
			t.Errorf("expected remote save to be created, got content %q", got)
		}
	})

	t.Run("Exits gracefully when the remote root is already locked", func(t *testing.T) {
		plan, localDir, remoteDir := newTestPlan(t)

		writeSave(t, filepath.Join(localDir, "slot1.sav"), "new", baseTime.Add(10*time.Minute))
		writeSave(t, filepath.Join(remoteDir, "slot1.sav"), "old", baseTime)

		lock, err := lockfile.Acquire(context.Background(), plan.RemoteRoot, "test-holder")
		if err != nil {
			t.Fatalf("failed to pre-acquire lock: %v", err)
		}
		defer func() {
			if err := lock.Release(); err != nil {
				t.Errorf("failed to release lock: %v", err)
			}
		}()

		runner := NewRunner(plan)
		if err := runner.ExecuteSync(context.Background(), plan); err != nil {
			t.Fatalf("expected graceful exit on held lock, got error: %v", err)
		}

		if got := readSave(t, filepath.Join(remoteDir, "slot1.sav")); got != "old" {
			t.Errorf("expected remote save untouched under a held lock, got content %q", got)
		}
	})

	t.Run("Writes nothing in dry run mode", func(t *testing.T) {
		plan, localDir, remoteDir := newTestPlan(t)
		plan.DryRun = true
		plan.Preflight.DryRun = true
		plan.Reconcile.DryRun = true
		plan.Archive.DryRun = true
		plan.Hooks.DryRun = true

		writeSave(t, filepath.Join(localDir, "slot1.sav"), "new", baseTime)

		runner := NewRunner(plan)
		if err := runner.ExecuteSync(context.Background(), plan); err != nil {
			t.Fatalf("ExecuteSync failed: %v", err)
		}

		if _, err := os.Stat(filepath.Join(remoteDir, "slot1.sav")); !os.IsNotExist(err) {
			t.Error("expected no remote save to be written in dry run mode")
		}
	})

	t.Run("Returns the context error when canceled", func(t *testing.T) {
		plan, _, _ := newTestPlan(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		runner := NewRunner(plan)
		if err := runner.ExecuteSync(ctx, plan); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestExecuteList(t *testing.T) {
	baseTime := time.Now().Add(-1 * time.Hour).Truncate(time.Second)

	plan, localDir, remoteDir := newTestPlan(t)

	writeSave(t, filepath.Join(localDir, "slot1.sav"), "new", baseTime.Add(10*time.Minute))
	writeSave(t, filepath.Join(remoteDir, "slot1.sav"), "old", baseTime)

	runner := NewRunner(plan)
	if err := runner.ExecuteList(context.Background(), plan); err != nil {
		t.Fatalf("ExecuteList failed: %v", err)
	}

	// Listing must never modify either side.
	if got := readSave(t, filepath.Join(remoteDir, "slot1.sav")); got != "old" {
		t.Errorf("expected remote save untouched after list, got content %q", got)
	}
}
