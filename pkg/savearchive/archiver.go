package savearchive

import (
	"archive/tar"
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/gamesave/savesync/pkg/plog"
)

// Archiver writes timestamped archives of replaced saves and prunes old ones.
type Archiver struct {
	plan *Plan

	ioBufferPool sync.Pool
}

// NewArchiver creates an Archiver for the given plan.
func NewArchiver(bufferSizeKB int, p *Plan) *Archiver {
	return &Archiver{
		plan: p,
		ioBufferPool: sync.Pool{
			New: func() any {
				b := make([]byte, bufferSizeKB*1024)
				return &b
			},
		},
	}
}

// ArchiveReplaced packs the save at savePath into a new archive under the
// game's archive directory, then prunes archives of the same save beyond the
// configured retention.
func (a *Archiver) ArchiveReplaced(ctx context.Context, game, savePath string) error {
	if !a.plan.Enabled {
		return ErrDisabled
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	saveBase := filepath.Base(savePath)
	archiveDir := filepath.Join(a.plan.Dir, game)
	archivePath := filepath.Join(archiveDir, archiveFileName(saveBase, time.Now(), a.plan.Format))

	if a.plan.DryRun {
		plog.Notice("[DRY RUN] ARCHIVE", "game", game, "save", saveBase, "archive", archivePath)
		return nil
	}

	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory %s: %w", archiveDir, err)
	}

	if err := a.writeArchive(savePath, archivePath); err != nil {
		return err
	}
	plog.Notice("ARCHIVE", "game", game, "save", saveBase, "archive", archivePath)

	if err := a.pruneArchives(archiveDir, saveBase); err != nil {
		// Retention failures leave extra archives behind, nothing worse.
		plog.Warn("Failed to prune old save archives", "game", game, "save", saveBase, "error", err)
	}
	return nil
}

// writeArchive writes the archive to a temporary file in the destination
// directory and renames it into place, so a crashed run never leaves a
// half-written archive that looks valid.
func (a *Archiver) writeArchive(savePath, archivePath string) (retErr error) {
	in, err := os.Open(savePath)
	if err != nil {
		return fmt.Errorf("failed to open save %s for archiving: %w", savePath, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat save %s: %w", savePath, err)
	}

	out, err := os.CreateTemp(filepath.Dir(archivePath), ".savesync-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary archive file: %w", err)
	}
	tempPath := out.Name()
	defer func() {
		if tempPath != "" {
			out.Close()
			os.Remove(tempPath)
		}
	}()

	if err := a.compressInto(out, in, info); err != nil {
		return fmt.Errorf("failed to write archive for %s: %w", savePath, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close archive file %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, archivePath); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	tempPath = ""
	return nil
}

// compressInto writes a single-entry archive of in to out in the plan's format.
func (a *Archiver) compressInto(out *os.File, in *os.File, info os.FileInfo) error {
	bufPtr := a.ioBufferPool.Get().(*[]byte)
	defer a.ioBufferPool.Put(bufPtr)

	switch a.plan.Format {
	case Zip:
		zw := zip.NewWriter(out)
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Method = zip.Deflate
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		if _, err := io.CopyBuffer(w, in, *bufPtr); err != nil {
			return err
		}
		return zw.Close()

	case TarZst:
		zw, err := zstd.NewWriter(out)
		if err != nil {
			return err
		}
		if err := writeTarEntry(zw, in, info, *bufPtr); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()

	default: // TarGz
		gw := pgzip.NewWriter(out)
		if err := writeTarEntry(gw, in, info, *bufPtr); err != nil {
			gw.Close()
			return err
		}
		return gw.Close()
	}
}

func writeTarEntry(w io.Writer, in *os.File, info os.FileInfo, buf []byte) error {
	tw := tar.NewWriter(w)
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if _, err := io.CopyBuffer(tw, in, buf); err != nil {
		return err
	}
	return tw.Close()
}

// pruneArchives removes the oldest archives of one save beyond plan.Keep.
// Archive names embed a sortable UTC timestamp, so name order is age order.
func (a *Archiver) pruneArchives(archiveDir, saveBase string) error {
	if a.plan.Keep <= 0 {
		return nil
	}

	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		return err
	}

	prefix := saveBase + "."
	suffix := a.plan.Format.Extension()
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			names = append(names, name)
		}
	}
	if len(names) <= a.plan.Keep {
		return nil
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-a.plan.Keep] {
		path := filepath.Join(archiveDir, name)
		if err := os.Remove(path); err != nil {
			return err
		}
		plog.Debug("Pruned old save archive", "archive", path)
	}
	return nil
}
