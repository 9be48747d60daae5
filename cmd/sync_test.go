package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gamesave/savesync/pkg/util"
)

func TestResolveRemoteRoot(t *testing.T) {
	t.Run("Flag wins over environment", func(t *testing.T) {
		t.Setenv("SAVESYNC_REMOTE", "/env/saves")

		root, err := resolveRemoteRoot(map[string]interface{}{"remote": "/flag/saves"})
		if err != nil {
			t.Fatalf("resolveRemoteRoot failed: %v", err)
		}
		if root != "/flag/saves" {
			t.Errorf("expected /flag/saves, got %s", root)
		}
	})

	t.Run("Environment wins over the default", func(t *testing.T) {
		t.Setenv("SAVESYNC_REMOTE", "/env/saves")

		root, err := resolveRemoteRoot(map[string]interface{}{})
		if err != nil {
			t.Fatalf("resolveRemoteRoot failed: %v", err)
		}
		if root != "/env/saves" {
			t.Errorf("expected /env/saves, got %s", root)
		}
	})

	t.Run("Falls back to the documented default", func(t *testing.T) {
		t.Setenv("SAVESYNC_REMOTE", "")

		root, err := resolveRemoteRoot(map[string]interface{}{})
		if err != nil {
			t.Fatalf("resolveRemoteRoot failed: %v", err)
		}
		expected, err := util.ExpandPath(DefaultRemoteRoot)
		if err != nil {
			t.Fatalf("could not expand default root: %v", err)
		}
		if root != expected {
			t.Errorf("expected %s, got %s", expected, root)
		}
	})

	t.Run("Expands a tilde in the flag value", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Fatalf("could not get home dir: %v", err)
		}

		root, err := resolveRemoteRoot(map[string]interface{}{"remote": "~/cloud/saves"})
		if err != nil {
			t.Fatalf("resolveRemoteRoot failed: %v", err)
		}
		if root != filepath.Join(home, "cloud/saves") {
			t.Errorf("expected tilde expansion against %s, got %s", home, root)
		}
	})
}
