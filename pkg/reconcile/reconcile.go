// Package reconcile implements the save reconciliation pass: for every
// configured game it pairs local and remote save files by their derived
// identity, compares modification times, and copies the newer side over the
// older one.
//
// The policy deliberately trusts filesystem timestamps and never inspects
// content. Two sides modified independently between runs will resolve
// last-writer-wins; the conflict case (equal time, different content) is
// reported but never merged. This is a documented limitation of the tool,
// not a bug to fix here.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gamesave/savesync/pkg/hints"
	"github.com/gamesave/savesync/pkg/plog"
	"github.com/gamesave/savesync/pkg/savename"
)

// Notifier reports a reconciliation action to the user.
// Implementations must treat delivery as best-effort; a returned error is
// logged by the reconciler but never fails the run.
type Notifier interface {
	Notify(ctx context.Context, title, message string, critical bool) error
}

// Archiver keeps a copy of a save that is about to be overwritten.
type Archiver interface {
	ArchiveReplaced(ctx context.Context, game, savePath string) error
}

// saveFile pairs a derived save identity with the file state behind it.
type saveFile struct {
	identity string
	state    FileState
}

// Reconciler walks the configured games and performs at most one copy per
// save mapping to bring the older or missing side up to date.
type Reconciler struct {
	archiver Archiver
	notifier Notifier

	retryCount int
	retryWait  time.Duration

	ioBufferPool sync.Pool

	// Run-scoped state, set at the start of Run.
	modTimeWindow time.Duration
	dryRun        bool
	metrics       Metrics
}

// NewReconciler creates a Reconciler. archiver and notifier may be nil to
// disable the respective side effects.
func NewReconciler(bufferSizeKB, retryCount int, retryWait time.Duration, archiver Archiver, notifier Notifier) *Reconciler {
	return &Reconciler{
		archiver:   archiver,
		notifier:   notifier,
		retryCount: retryCount,
		retryWait:  retryWait,
		ioBufferPool: sync.Pool{
			New: func() any {
				b := make([]byte, bufferSizeKB*1024)
				return &b
			},
		},
		metrics: &NoopMetrics{},
	}
}

// Run executes one reconciliation pass over all games in the plan.
//
// A failing game is logged and skipped so that one bad save directory never
// blocks reconciliation of the others; the returned error is non-nil only
// when the run itself is canceled. Run is not safe for concurrent use.
func (r *Reconciler) Run(ctx context.Context, p *Plan) error {
	r.modTimeWindow = p.ModTimeWindow
	r.dryRun = p.DryRun
	if p.Metrics {
		r.metrics = NewSyncMetrics()
	} else {
		r.metrics = &NoopMetrics{}
	}

	workers := p.GameWorkers
	if workers < 1 {
		workers = 1
	}

	// With a limit of 1 the games are processed strictly in configuration
	// order, which keeps runs deterministic. Higher limits trade that for
	// throughput; correctness is unaffected since games share no paths.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, game := range p.Games {
		game := game
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			plog.Info("Reconciling game", "game", game.Name, "local", game.LocalDir, "remote", game.RemoteDir)
			if err := r.syncGame(gctx, game); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.metrics.AddErrors(1)
				plog.Warn("Game reconciliation failed, skipping", "game", game.Name, "error", err)
				return nil
			}
			r.metrics.AddGamesProcessed(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if p.Metrics {
		r.metrics.LogSummary("Reconciliation summary")
	}
	return nil
}

// syncGame reconciles a single game in two passes, mirroring the shape of the
// save directories on both sides.
//
// Pass 1 walks the local saves and reconciles each against its remote
// counterpart (seeding the remote side when missing). Pass 2 re-lists both
// sides and copies down any remote save that still has no local counterpart,
// which is what restores saves on a freshly set up machine.
func (r *Reconciler) syncGame(ctx context.Context, game GamePlan) error {
	localSaves, err := listSaves(game, game.LocalDir, r.metrics)
	if err != nil {
		return err
	}
	remoteSaves, err := listSaves(game, game.RemoteDir, r.metrics)
	if err != nil {
		return err
	}
	remoteByID := indexByIdentity(remoteSaves)

	for _, local := range localSaves {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		remoteState := FileState{Path: filepath.Join(game.RemoteDir, filepath.Base(local.state.Path))}
		if remote, ok := remoteByID[local.identity]; ok {
			remoteState = remote.state
		}

		if err := r.applyAction(ctx, game, local.identity, local.state, remoteState); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.metrics.AddErrors(1)
			plog.Warn("Failed to sync save, skipping", "game", game.Name, "save", local.identity, "error", err)
		}
	}

	// Sweep pass. Both sides are listed again because the first pass may
	// have changed them.
	localSaves, err = listSaves(game, game.LocalDir, r.metrics)
	if err != nil {
		return err
	}
	remoteSaves, err = listSaves(game, game.RemoteDir, r.metrics)
	if err != nil {
		return err
	}
	localByID := indexByIdentity(localSaves)

	for _, remote := range remoteSaves {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, ok := localByID[remote.identity]; ok {
			continue
		}

		localState := FileState{Path: filepath.Join(game.LocalDir, filepath.Base(remote.state.Path))}
		if err := r.applyAction(ctx, game, remote.identity, localState, remote.state); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.metrics.AddErrors(1)
			plog.Warn("Failed to restore save, skipping", "game", game.Name, "save", remote.identity, "error", err)
		}
	}
	return nil
}

// applyAction decides and executes the single action for one save mapping.
func (r *Reconciler) applyAction(ctx context.Context, game GamePlan, identity string, local, remote FileState) error {
	switch Decide(local, remote, r.modTimeWindow) {
	case ActionNone:
		if local.Exists && remote.Exists {
			r.metrics.AddSavesUpToDate(1)
		}
		return nil

	case ActionCopyToRemote:
		return r.performCopy(ctx, game, identity, local, remote, directionToRemote)

	case ActionCopyToLocal:
		return r.performCopy(ctx, game, identity, remote, local, directionToLocal)

	case ActionConflict:
		r.metrics.AddConflicts(1)
		plog.Warn("Save conflict: same modification time, different content",
			"game", game.Name, "save", identity, "local", local.Path, "remote", remote.Path)
		r.notify(ctx,
			fmt.Sprintf("Failed to sync save for %s", game.Name),
			fmt.Sprintf("Save %q exists on both sides with different contents but the same modification timestamp", identity),
			true)
		return nil
	}
	return nil
}

type copyDirection int

const (
	directionToRemote copyDirection = iota
	directionToLocal
)

func (d copyDirection) String() string {
	if d == directionToRemote {
		return "to"
	}
	return "from"
}

// performCopy copies src over dst, archiving an existing dst first.
func (r *Reconciler) performCopy(ctx context.Context, game GamePlan, identity string, src, dst FileState, direction copyDirection) error {
	if r.dryRun {
		plog.Notice("[DRY RUN] COPY", "game", game.Name, "save", identity, "from", src.Path, "to", dst.Path)
		return nil
	}

	if dst.Exists && r.archiver != nil {
		// Best-effort: a failed archive should not block the sync itself.
		if err := r.archiver.ArchiveReplaced(ctx, game.Name, dst.Path); err != nil && !hints.IsHint(err) {
			plog.Warn("Failed to archive replaced save", "game", game.Name, "save", identity, "error", err)
		}
	}

	if err := r.copySave(ctx, src, dst.Path); err != nil {
		return err
	}

	if dst.Exists {
		r.metrics.AddSavesCopied(1)
	} else {
		r.metrics.AddSavesSeeded(1)
	}

	plog.Notice("COPY", "game", game.Name, "save", identity, "from", src.Path, "to", dst.Path)
	r.notify(ctx,
		fmt.Sprintf("Synced save for %s", game.Name),
		fmt.Sprintf("Synced save %q %s remote", identity, direction),
		false)
	return nil
}

// notify reports an action through the configured notifier, if any.
// Notification failures are never fatal.
func (r *Reconciler) notify(ctx context.Context, title, message string, critical bool) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, title, message, critical); err != nil && !hints.IsHint(err) {
		plog.Warn("Notification failed", "title", title, "error", err)
	}
}

// listSaves enumerates the save files of one game directory and derives their
// identities. A missing directory is treated as an empty save set, which is
// the normal state on a machine that has never run the game.
func listSaves(game GamePlan, dir string, metrics Metrics) ([]saveFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			plog.Debug("Save directory does not exist yet", "game", game.Name, "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list saves in %s: %w", dir, err)
	}

	var saves []saveFile
	for _, entry := range entries {
		if entry.IsDir() || !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if game.SaveSuffix != "" && !strings.HasSuffix(name, game.SaveSuffix) {
			continue
		}
		if isExcluded(game, name) {
			continue
		}

		path := filepath.Join(dir, name)
		identity, err := game.NameRule.Derive(path)
		if err != nil {
			if errors.Is(err, savename.ErrIgnored) {
				metrics.AddSavesIgnored(1)
				plog.Debug("Ignoring save file", "game", game.Name, "file", name)
				continue
			}
			metrics.AddErrors(1)
			plog.Warn("Failed to derive save identity, skipping file", "game", game.Name, "file", name, "error", err)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			metrics.AddErrors(1)
			plog.Warn("Failed to stat save file, skipping", "game", game.Name, "file", name, "error", err)
			continue
		}

		saves = append(saves, saveFile{
			identity: identity,
			state: FileState{
				Path:    path,
				Exists:  true,
				ModTime: info.ModTime(),
				Size:    info.Size(),
				Mode:    info.Mode(),
			},
		})
	}
	return saves, nil
}

// isExcluded matches a file name against the game's exclusion patterns.
// The planner always seeds these with the tool's own artifacts (config file,
// lock file, temp files) so they are never treated as saves.
func isExcluded(game GamePlan, name string) bool {
	for _, pattern := range game.ExcludeFiles {
		match, err := filepath.Match(pattern, name)
		if err != nil {
			plog.Warn("Invalid exclusion pattern", "pattern", pattern, "error", err)
			continue
		}
		if match {
			return true
		}
	}
	return false
}

// indexByIdentity builds a lookup map from derived identity to save file.
// ReadDir returns entries sorted by name, so on duplicate identities the
// first file in name order wins deterministically.
func indexByIdentity(saves []saveFile) map[string]saveFile {
	index := make(map[string]saveFile, len(saves))
	for _, save := range saves {
		if existing, ok := index[save.identity]; ok {
			plog.Warn("Duplicate save identity, keeping first", "identity", save.identity, "kept", existing.state.Path, "dropped", save.state.Path)
			continue
		}
		index[save.identity] = save
	}
	return index
}
