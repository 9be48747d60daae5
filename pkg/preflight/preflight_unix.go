//go:build !windows

package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// platformValidateMountPoint checks if the path resides on the root filesystem.
// If it does, it assumes the drive is NOT mounted (ghost detection).
func platformValidateMountPoint(path string) error {
	// 1. Allow the home directory; Dropbox-style sync folders usually live there.
	homeDir, _ := os.UserHomeDir()
	if strings.HasPrefix(path, homeDir) {
		return nil
	}

	// 2. Get the device ID of the root partition.
	rootInfo, err := os.Stat("/")
	if err != nil {
		return fmt.Errorf("failed to stat root: %w", err)
	}
	rootStat, ok := rootInfo.Sys().(*unix.Stat_t)
	if !ok {
		return fmt.Errorf("unsupported platform for unix.Stat_t")
	}

	// 3. Get the device ID of the target path.
	pathInfo, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat remote save root: %w", err)
	}
	pathStat, ok := pathInfo.Sys().(*unix.Stat_t)
	if !ok {
		return fmt.Errorf("unsupported platform for unix.Stat_t")
	}

	// 4. Compare device IDs. Same device as "/" outside home means the
	// sync folder's drive is probably not mounted.
	if pathStat.Dev == rootStat.Dev && path != "/" {
		return fmt.Errorf("path '%s' is on the root filesystem (system disk). "+
			"Ensure your sync folder's drive is mounted", path)
	}

	return nil
}
