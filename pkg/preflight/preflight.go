// Package preflight validates that the local and remote save roots are in a
// usable state before any reconciliation starts. The checks are stateless
// except for the write probe, which creates and removes a temporary file.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gamesave/savesync/pkg/plog"
)

// Plan selects which preflight checks run.
type Plan struct {
	LocalAccessible  bool
	RemoteAccessible bool
	RemoteWritable   bool
	MountCheck       bool

	// Global Flags
	DryRun bool
}

// Validator runs the preflight checks.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Run executes the planned checks against the two save roots.
// A failed check is fatal for the run: reconciling against a missing or
// unmounted remote root would mass-seed saves into the void.
func (v *Validator) Run(ctx context.Context, localRoot, remoteRoot string, p *Plan) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	plog.Info("Running preflight checks", "local", localRoot, "remote", remoteRoot)

	if p.LocalAccessible {
		if err := checkRootAccessible("local", localRoot); err != nil {
			return err
		}
	}
	if p.RemoteAccessible {
		if err := checkRootAccessible("remote", remoteRoot); err != nil {
			return err
		}
	}
	if p.MountCheck {
		// The remote root is typically a cloud-agent folder. If it sits on
		// the system partition outside the home directory, the sync folder
		// is likely not mounted and writing would create a ghost tree.
		if err := platformValidateMountPoint(remoteRoot); err != nil {
			return err
		}
	}
	if p.RemoteWritable && !p.DryRun {
		if err := checkRootWritable(remoteRoot); err != nil {
			return err
		}
	}
	return nil
}

// checkRootAccessible validates that a save root exists and is a directory.
func checkRootAccessible(side, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s save root %s does not exist", side, root)
		}
		return fmt.Errorf("cannot stat %s save root %s: %w", side, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s save root %s is not a directory", side, root)
	}
	return nil
}

// checkRootWritable performs a write probe by creating and deleting a
// temporary file in the root.
func checkRootWritable(root string) error {
	tempFile := filepath.Join(root, ".savesync-writetest.tmp")
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("remote save root %s is not writable: %w", root, err)
	}
	f.Close()
	_ = os.Remove(tempFile)
	return nil
}
