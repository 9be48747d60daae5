package savearchive

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/gamesave/savesync/pkg/hints"
)

func TestParseFormat(t *testing.T) {
	testCases := []struct {
		input     string
		expected  Format
		expectErr bool
	}{
		{"tar.gz", TarGz, false},
		{"tar.zst", TarZst, false},
		{"zip", Zip, false},
		{"rar", TarGz, true},
		{"", TarGz, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			format, err := ParseFormat(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected an error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if format != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, format)
			}
		})
	}
}

func writeTestSave(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write save: %v", err)
	}
	return path
}

// findArchive returns the single archive created for a save, failing the test
// on any other count.
func findArchive(t *testing.T, archiveDir, saveBase string) string {
	t.Helper()
	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		t.Fatalf("failed to read archive dir: %v", err)
	}
	var matches []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), saveBase+".") {
			matches = append(matches, filepath.Join(archiveDir, entry.Name()))
		}
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 archive for %s, found %d", saveBase, len(matches))
	}
	return matches[0]
}

// extractSingleEntry reads the only entry of an archive in the given format.
func extractSingleEntry(t *testing.T, path string, format Format) string {
	t.Helper()

	switch format {
	case Zip:
		zr, err := zip.OpenReader(path)
		if err != nil {
			t.Fatalf("failed to open zip archive: %v", err)
		}
		defer zr.Close()
		if len(zr.File) != 1 {
			t.Fatalf("expected 1 entry in zip, got %d", len(zr.File))
		}
		rc, err := zr.File[0].Open()
		if err != nil {
			t.Fatalf("failed to open zip entry: %v", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("failed to read zip entry: %v", err)
		}
		return string(data)

	default:
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("failed to open archive: %v", err)
		}
		defer f.Close()

		var decompressed io.Reader
		if format == TarZst {
			zr, err := zstd.NewReader(f)
			if err != nil {
				t.Fatalf("failed to create zstd reader: %v", err)
			}
			defer zr.Close()
			decompressed = zr
		} else {
			gr, err := pgzip.NewReader(f)
			if err != nil {
				t.Fatalf("failed to create gzip reader: %v", err)
			}
			defer gr.Close()
			decompressed = gr
		}

		tr := tar.NewReader(decompressed)
		if _, err := tr.Next(); err != nil {
			t.Fatalf("failed to read tar header: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("failed to read tar entry: %v", err)
		}
		return string(data)
	}
}

func TestArchiveReplacedRoundTrip(t *testing.T) {
	for _, format := range []Format{TarGz, TarZst, Zip} {
		t.Run(format.String(), func(t *testing.T) {
			saveDir := t.TempDir()
			archiveRoot := t.TempDir()
			savePath := writeTestSave(t, saveDir, "slot1.sav", "precious progress")

			a := NewArchiver(64, &Plan{Enabled: true, Format: format, Dir: archiveRoot, Keep: 5})
			if err := a.ArchiveReplaced(context.Background(), "testgame", savePath); err != nil {
				t.Fatalf("archive failed: %v", err)
			}

			archivePath := findArchive(t, filepath.Join(archiveRoot, "testgame"), "slot1.sav")
			if !strings.HasSuffix(archivePath, format.Extension()) {
				t.Errorf("archive %s does not carry extension %s", archivePath, format.Extension())
			}
			if got := extractSingleEntry(t, archivePath, format); got != "precious progress" {
				t.Errorf("archive content mismatch: %q", got)
			}
		})
	}
}

func TestArchiveReplacedDisabled(t *testing.T) {
	a := NewArchiver(64, &Plan{Enabled: false})

	err := a.ArchiveReplaced(context.Background(), "testgame", "/nonexistent/slot1.sav")
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if !hints.IsHint(err) {
		t.Error("expected ErrDisabled to be a hint")
	}
}

func TestArchiveReplacedDryRun(t *testing.T) {
	saveDir := t.TempDir()
	archiveRoot := t.TempDir()
	savePath := writeTestSave(t, saveDir, "slot1.sav", "data")

	a := NewArchiver(64, &Plan{Enabled: true, Format: TarGz, Dir: archiveRoot, Keep: 5, DryRun: true})
	if err := a.ArchiveReplaced(context.Background(), "testgame", savePath); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(archiveRoot, "testgame")); !os.IsNotExist(err) {
		t.Error("dry run created an archive directory")
	}
}

func TestArchiveReplacedPrunesOldArchives(t *testing.T) {
	saveDir := t.TempDir()
	archiveRoot := t.TempDir()
	savePath := writeTestSave(t, saveDir, "slot1.sav", "data")

	// Pre-seed old archives; their names sort before anything created now.
	gameDir := filepath.Join(archiveRoot, "testgame")
	if err := os.MkdirAll(gameDir, 0755); err != nil {
		t.Fatalf("failed to create archive dir: %v", err)
	}
	oldNames := []string{
		"slot1.sav.20240101T000000Z.tar.gz",
		"slot1.sav.20240102T000000Z.tar.gz",
		"slot1.sav.20240103T000000Z.tar.gz",
	}
	for _, name := range oldNames {
		writeTestSave(t, gameDir, name, "old archive")
	}
	// An archive of a different save must never be touched by pruning.
	writeTestSave(t, gameDir, "slot2.sav.20240101T000000Z.tar.gz", "other save")

	a := NewArchiver(64, &Plan{Enabled: true, Format: TarGz, Dir: archiveRoot, Keep: 2})
	if err := a.ArchiveReplaced(context.Background(), "testgame", savePath); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	entries, err := os.ReadDir(gameDir)
	if err != nil {
		t.Fatalf("failed to read archive dir: %v", err)
	}

	var slot1Count int
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "slot1.sav.") {
			slot1Count++
			if name == oldNames[0] || name == oldNames[1] {
				t.Errorf("old archive %s survived pruning", name)
			}
		}
	}
	if slot1Count != 2 {
		t.Errorf("expected 2 retained archives for slot1.sav, got %d", slot1Count)
	}

	if _, err := os.Stat(filepath.Join(gameDir, "slot2.sav.20240101T000000Z.tar.gz")); err != nil {
		t.Error("pruning removed an archive of a different save")
	}
}
