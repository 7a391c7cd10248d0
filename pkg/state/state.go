package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths is the canonical runtime folder layout under the cache root.
type Paths struct {
	// Store holds the pebble cache.
	Store string
	// Telemetry holds slow-operation JSONL logs.
	Telemetry string
	// Crash and Abort hold crash dumps and exit requests.
	Crash string
	Abort string
	// Tmp is scratch space for atomic writes.
	Tmp string
}

// PathsVar is populated by EnsureStateDirs and read by the telemetry and
// shutdown packages.
var PathsVar Paths

// EnsureStateDirs ensures the canonical runtime folder layout exists under
// the provided cache root. It verifies paths are not symlinks and have
// restrictive permissions, and that they are writable by the process.
func EnsureStateDirs(root string) error {
	p := Paths{
		Store:     filepath.Join(root, "store"),
		Telemetry: filepath.Join(root, "state", "telemetry"),
		Crash:     filepath.Join(root, "state", "crash"),
		Abort:     filepath.Join(root, "state", "abort"),
		Tmp:       filepath.Join(root, "state", "tmp"),
	}

	for _, dir := range []string{p.Store, p.Telemetry, p.Crash, p.Abort, p.Tmp} {
		if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
			return fmt.Errorf("cannot create parent for %s: %w", dir, err)
		}

		// if path exists, reject symlinks and non-directories
		if fi, err := os.Lstat(dir); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("path is a symlink: %s", dir)
			}
			if !fi.IsDir() {
				return fmt.Errorf("path exists and is not a directory: %s", dir)
			}
			if fi.Mode().Perm()&0o022 != 0 {
				return fmt.Errorf("path has permissive mode (group/other write): %s", dir)
			}
		}

		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("cannot create path %s: %w", dir, err)
		}

		// writability check: create and remove a temp file
		tmp, err := os.CreateTemp(dir, ".validate-*")
		if err != nil {
			return fmt.Errorf("path not writable: %s: %w", dir, err)
		}
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	PathsVar = p
	return nil
}
