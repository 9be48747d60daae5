// Package notify delivers fire-and-forget desktop notifications about sync
// actions, by invoking the system's notification command (notify-send on
// most Linux desktops).
//
// A missing notification daemon or command must never fail a sync run; in
// that case delivery degrades to a console log line.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/gamesave/savesync/pkg/hints"
	"github.com/gamesave/savesync/pkg/plog"
)

// DefaultCommand is the notification command used when none is configured.
const DefaultCommand = "notify-send"

// ErrDisabled is returned when notifications are turned off.
var ErrDisabled = hints.New("notifications are disabled")

// ErrUnavailable is returned when no notification command exists on this
// system. It is a hint: the caller logs and moves on.
var ErrUnavailable = hints.New("notification command not available")

// Plan holds the notification settings for a sync run.
type Plan struct {
	Enabled bool
	Command string
}

// Notifier invokes the desktop notification command.
type Notifier struct {
	enabled bool
	command string

	// commandContext and lookPath allow mocking os/exec for testing.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
	lookPath       func(name string) (string, error)

	warnOnce sync.Once
}

// NewNotifier creates a Notifier from a plan. Passing nil commandContext or
// lookPath selects the real os/exec implementations.
func NewNotifier(p *Plan, commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd, lookPath func(name string) (string, error)) *Notifier {
	command := p.Command
	if command == "" {
		command = DefaultCommand
	}
	if commandContext == nil {
		commandContext = exec.CommandContext
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return &Notifier{
		enabled:        p.Enabled,
		command:        command,
		commandContext: commandContext,
		lookPath:       lookPath,
	}
}

// Notify sends a single desktop notification. critical raises the urgency so
// the message stays on screen until dismissed.
//
// Returns ErrDisabled or ErrUnavailable (both hints) when no notification is
// attempted, and a regular error when the command itself fails.
func (n *Notifier) Notify(ctx context.Context, title, message string, critical bool) error {
	if !n.enabled {
		return ErrDisabled
	}

	if _, err := n.lookPath(n.command); err != nil {
		// Degrade to a console log so the action is still reported.
		n.warnOnce.Do(func() {
			plog.Warn("Notification command not found, falling back to console output", "command", n.command)
		})
		plog.Notice("NOTIFY", "title", title, "message", message)
		return ErrUnavailable
	}

	urgency := "normal"
	if critical {
		urgency = "critical"
	}

	cmd := n.commandContext(ctx, n.command, "-t", "0", "-u", urgency, title, message)
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.Canceled {
			return context.Canceled
		}
		return fmt.Errorf("notification command %q failed: %w", n.command, err)
	}
	return nil
}
