package reconcile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gamesave/savesync/pkg/plog"
)

// copySave copies the source save over the destination path.
// It ensures atomicity by writing to a temporary file first and then renaming
// it, so an interrupted run never leaves a half-written save in place. The
// source's permissions and modification time are preserved, which is what
// makes a repeated run a no-op.
func (r *Reconciler) copySave(ctx context.Context, src FileState, dstPath string) error {
	var lastErr error
	for i := 0; i <= r.retryCount; i++ {
		if i > 0 {
			plog.Warn("Retrying save copy", "file", src.Path, "attempt", fmt.Sprintf("%d/%d", i, r.retryCount), "after", r.retryWait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retryWait):
			}
		}

		lastErr = func() error {
			in, err := os.Open(src.Path)
			if err != nil {
				return fmt.Errorf("failed to open source save %s: %w", src.Path, err)
			}
			defer in.Close()

			dstDir := filepath.Dir(dstPath)

			// The destination directory may not exist yet on a fresh machine.
			if err := os.MkdirAll(dstDir, 0755); err != nil {
				return fmt.Errorf("failed to ensure destination directory %s exists: %w", dstDir, err)
			}

			out, err := os.CreateTemp(dstDir, ".savesync-*.tmp")
			if err != nil {
				return fmt.Errorf("failed to create temporary file in %s: %w", dstDir, err)
			}

			tempPath := out.Name()
			// If the rename succeeds, tempPath is cleared and this becomes a no-op.
			defer func() {
				if tempPath != "" {
					os.Remove(tempPath)
				}
			}()

			bufPtr := r.ioBufferPool.Get().(*[]byte)
			defer r.ioBufferPool.Put(bufPtr)

			written, err := io.CopyBuffer(out, in, *bufPtr)
			if err != nil {
				out.Close()
				return fmt.Errorf("failed to copy content from %s to %s: %w", src.Path, tempPath, err)
			}

			if err := out.Chmod(src.Mode.Perm()); err != nil {
				out.Close()
				return fmt.Errorf("failed to set permissions on temporary file %s: %w", tempPath, err)
			}

			// Close before Chtimes: flushing on close may update the
			// modification time.
			if err := out.Close(); err != nil {
				return fmt.Errorf("failed to close temporary file %s: %w", tempPath, err)
			}

			if err := os.Chtimes(tempPath, src.ModTime, src.ModTime); err != nil {
				return fmt.Errorf("failed to set timestamps on %s: %w", tempPath, err)
			}

			if err := os.Rename(tempPath, dstPath); err != nil {
				return err
			}
			tempPath = ""

			r.metrics.AddBytesCopied(written)
			return nil
		}()

		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to copy save %s after %d retries: %w", src.Path, r.retryCount, lastErr)
}
