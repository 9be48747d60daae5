// Package hook executes user-configured shell commands around a sync run,
// e.g. pausing a game's cloud client before reconciling or triggering a
// backup job afterwards.
package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/gamesave/savesync/pkg/hints"
	"github.com/gamesave/savesync/pkg/plog"
)

// ErrNothingToExecute is returned when the command list is empty.
var ErrNothingToExecute = hints.New("nothing to execute")

// Plan holds the hook commands for a sync run.
type Plan struct {
	PreSyncCommands  []string
	PostSyncCommands []string

	// Global Flags
	DryRun bool
}

// Executor runs hook commands through the system shell.
type Executor struct {
	// commandContext allows mocking os/exec for testing hooks.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewExecutor creates an Executor. Passing nil selects the real os/exec
// implementation.
func NewExecutor(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *Executor {
	if commandContext == nil {
		commandContext = exec.CommandContext
	}
	return &Executor{commandContext: commandContext}
}

// RunPhase executes the given commands in order. phase names the hook point
// for logging ("pre-sync" or "post-sync"). Failing commands are logged and
// the remaining commands still run; only cancellation aborts the sequence.
func (e *Executor) RunPhase(ctx context.Context, phase string, commands []string, dryRun bool) error {
	if len(commands) == 0 {
		return ErrNothingToExecute
	}

	plog.Info(fmt.Sprintf("Running %s hook commands", phase))

	for _, hookCommand := range commands {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if dryRun {
			plog.Info("[DRY RUN] Executing command", "command", hookCommand)
			continue
		}
		plog.Info("Executing command", "command", hookCommand)

		cmd := e.createCommand(ctx, hookCommand)

		// Pipe output through for visibility.
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			// cmd.Wait returns an error on cancellation too; report the
			// context's error in that case so callers can tell them apart.
			if ctx.Err() == context.Canceled {
				return context.Canceled
			}
			plog.Warn("Hook command failed", "command", hookCommand, "error", err)
		}
	}
	return nil
}
