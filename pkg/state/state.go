package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved runtime folder layout under the DB path.
type Paths struct {
	Store     string
	State     string
	Retention string
	Crash     string
	Tmp       string
}

// PathsVar is set by Ensure and read by packages that write runtime
// artifacts (retention reports, crash dumps).
var PathsVar Paths

// Ensure creates the canonical runtime layout under dbPath and records it
// in PathsVar. Existing paths must be real directories without group or
// other write bits.
func Ensure(dbPath string) error {
	p := Paths{
		Store:     filepath.Join(dbPath, "store"),
		State:     filepath.Join(dbPath, "state"),
		Retention: filepath.Join(dbPath, "state", "retention"),
		Crash:     filepath.Join(dbPath, "state", "crash"),
		Tmp:       filepath.Join(dbPath, "state", "tmp"),
	}
	for _, dir := range []string{p.Store, p.Retention, p.Crash, p.Tmp} {
		if err := ensureDir(dir); err != nil {
			return err
		}
	}
	PathsVar = p
	return nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
		return fmt.Errorf("cannot create parent for %s: %w", dir, err)
	}
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
	// writability check
	tmp, err := os.CreateTemp(dir, ".validate-*")
	if err != nil {
		return fmt.Errorf("path not writable: %s: %w", dir, err)
	}
	tmp.Close()
	_ = os.Remove(tmp.Name())
	return nil
}
