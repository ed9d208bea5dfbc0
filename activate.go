package svsync

import (
	"fmt"
	"os"
)

// Activate ensures a symlink at activationPath pointing to stagingPath,
// making the staged service visible to the supervisor's scanner.
//
// An existing symlink with exactly the wanted target is a no-op. Any other
// occupant of activationPath is a *ConflictError: overwriting could unlink
// supervisor state for the wrong service or destroy a user file, so the
// conflict is reported and never auto-resolved.
func Activate(stagingPath, activationPath string) error {
	fi, err := os.Lstat(activationPath)
	if os.IsNotExist(err) {
		if err := os.Symlink(stagingPath, activationPath); err != nil {
			return fmt.Errorf("creating activation link %q: %w", activationPath, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspecting activation path %q: %w", activationPath, err)
	}

	if fi.Mode()&os.ModeSymlink == 0 {
		return &ConflictError{Path: activationPath, Want: stagingPath}
	}

	target, err := os.Readlink(activationPath)
	if err != nil {
		return fmt.Errorf("reading activation link %q: %w", activationPath, err)
	}
	if target != stagingPath {
		return &ConflictError{Path: activationPath, Target: target, Want: stagingPath}
	}

	return nil
}

// Deactivate removes the activation symlink for a service. A missing link
// is treated as already removed.
func Deactivate(activationPath string) error {
	if err := os.Remove(activationPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing activation link %q: %w", activationPath, err)
	}
	return nil
}
