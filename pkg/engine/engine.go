// Package engine orchestrates a full sync run: preflight validation, run
// locking, hooks, and the reconciliation pass itself. All policy lives in the
// plans produced by the planner; the engine only sequences the steps.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamesave/savesync/pkg/hints"
	"github.com/gamesave/savesync/pkg/hook"
	"github.com/gamesave/savesync/pkg/lockfile"
	"github.com/gamesave/savesync/pkg/notify"
	"github.com/gamesave/savesync/pkg/planner"
	"github.com/gamesave/savesync/pkg/plog"
	"github.com/gamesave/savesync/pkg/preflight"
	"github.com/gamesave/savesync/pkg/reconcile"
	"github.com/gamesave/savesync/pkg/savearchive"
)

// Runner wires together the executors for one or more sync runs.
type Runner struct {
	validator  *preflight.Validator
	reconciler *reconcile.Reconciler
	hooks      *hook.Executor
}

// NewRunner builds a Runner for the given plan.
func NewRunner(p *planner.SyncPlan) *Runner {
	notifier := notify.NewNotifier(p.Notify, nil, nil)
	archiver := savearchive.NewArchiver(p.BufferSizeKB, p.Archive)

	return &Runner{
		validator:  preflight.NewValidator(),
		reconciler: reconcile.NewReconciler(p.BufferSizeKB, p.RetryCount, p.RetryWait, archiver, notifier),
		hooks:      hook.NewExecutor(nil),
	}
}

// ExecuteSync runs one full reconciliation pass.
//
// The run lock is taken on the remote root since that is the directory shared
// between machines; a lock already held by a live process on any machine ends
// the run gracefully.
func (r *Runner) ExecuteSync(ctx context.Context, p *planner.SyncPlan) error {
	// Check for cancellation at the very beginning.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Run Preflight Validation
	if err := r.validator.Run(ctx, p.LocalRoot, p.RemoteRoot, p.Preflight); err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}

	// Acquire Lock on the remote root.
	releaseLock, err := r.acquireRemoteLock(ctx, p.RemoteRoot)
	if err != nil {
		return err // A real error occurred during lock acquisition.
	}
	if releaseLock == nil {
		return nil // Lock was already held, exit gracefully.
	}
	defer releaseLock()

	// --- Pre-Sync Hooks ---
	if err := r.hooks.RunPhase(ctx, "pre-sync", p.Hooks.PreSyncCommands, p.Hooks.DryRun); err != nil && !hints.IsHint(err) {
		// Individual command failures are logged inside RunPhase; an error
		// here means the hook phase itself was aborted.
		errMsg := "pre-sync hooks failed"
		if errors.Is(err, context.Canceled) {
			errMsg = "pre-sync hooks canceled"
		}
		return fmt.Errorf("%s: %w", errMsg, err)
	}

	// --- Post-Sync Hooks (deferred) ---
	// These will run at the end of the function, even if the sync fails.
	defer func() {
		if err := r.hooks.RunPhase(ctx, "post-sync", p.Hooks.PostSyncCommands, p.Hooks.DryRun); err != nil && !hints.IsHint(err) {
			if errors.Is(err, context.Canceled) {
				plog.Info("post-sync hooks skipped due to cancellation.")
			} else {
				plog.Warn("post-sync hook failed", "error", err)
			}
		}
	}()

	plog.Info("Starting sync", "remote", p.RemoteRoot, "games", len(p.Reconcile.Games), "dry_run", p.DryRun)

	if err := r.reconciler.Run(ctx, p.Reconcile); err != nil {
		return fmt.Errorf("error during reconciliation: %w", err)
	}

	plog.Info("Sync completed")
	return nil
}

// ExecuteList reports the state of every configured save mapping without
// copying anything.
func (r *Runner) ExecuteList(ctx context.Context, p *planner.SyncPlan) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := r.validator.Run(ctx, p.LocalRoot, p.RemoteRoot, p.Preflight); err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}

	for _, game := range p.Reconcile.Games {
		statuses, err := reconcile.Inspect(ctx, game, p.Reconcile.ModTimeWindow)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			plog.Warn("Failed to inspect game, skipping", "game", game.Name, "error", err)
			continue
		}

		plog.Info("Game", "name", game.Name, "saves", len(statuses))
		for _, status := range statuses {
			plog.Info("  save",
				"identity", status.Identity,
				"action", status.Action.String(),
				"local", describeSide(status.Local),
				"remote", describeSide(status.Remote))
		}
	}
	return nil
}

// describeSide renders one side of a mapping for the list output.
func describeSide(state reconcile.FileState) string {
	if !state.Exists {
		return "missing"
	}
	return state.ModTime.Format("2006-01-02 15:04:05")
}

// acquireRemoteLock acquires a file lock in the remote root. It returns a
// release function that must be called to unlock the directory, or nil when
// another live run already holds the lock.
func (r *Runner) acquireRemoteLock(ctx context.Context, remoteRoot string) (func(), error) {
	appID := fmt.Sprintf("savesync:%s", remoteRoot)

	plog.Debug("Attempting to acquire lock", "path", remoteRoot)
	lock, err := lockfile.Acquire(ctx, remoteRoot, appID)
	if err != nil {
		var lockErr *lockfile.ErrLockActive
		if errors.As(err, &lockErr) {
			plog.Warn("A sync is already running for this remote root, skipping run.", "details", lockErr.Error())
			return nil, nil // Return nil error to indicate a graceful exit.
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	plog.Debug("Lock acquired successfully.")

	return func() {
		if err := lock.Release(); err != nil {
			plog.Warn("Failed to release lock", "error", err)
		}
	}, nil
}
