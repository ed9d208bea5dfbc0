package svsync

import (
	"bytes"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/google/renameio/v2"

	"github.com/axondata/go-svsync/internal/unix"
)

// Materializer builds and updates the on-disk directory structure for one
// service so that it matches a ServiceSpec. Materialization is idempotent:
// existing directories and FIFOs are left untouched, and entry scripts are
// rewritten only when their generated content differs byte for byte from
// what is on disk.
type Materializer struct {
	// LauncherPath is the binary generated entry scripts exec
	LauncherPath string
	// LogOwner is the unprivileged user that owns log/main on creation;
	// empty disables the ownership change
	LogOwner string
}

// NewMaterializer creates a Materializer with default settings
func NewMaterializer() *Materializer {
	return &Materializer{
		LauncherPath: DefaultLauncherPath,
		LogOwner:     DefaultLogOwner,
	}
}

// WithLauncherPath sets the launcher binary entry scripts exec
func (m *Materializer) WithLauncherPath(path string) *Materializer {
	m.LauncherPath = path
	return m
}

// WithLogOwner sets the user owning log/main; empty disables chown
func (m *Materializer) WithLogOwner(owner string) *Materializer {
	m.LogOwner = owner
	return m
}

// Materialize converges the service directory at stagingPath to spec.
// It reports whether anything on disk changed; a restart of the supervised
// process is only warranted when it returns true.
//
// Directories and FIFOs are created parent before child, so that entry
// scripts are only ever written into a fully constructed tree. Filesystem
// errors are fatal and are not retried.
func (m *Materializer) Materialize(spec ServiceSpec, stagingPath string) (bool, error) {
	if err := spec.Validate(); err != nil {
		return false, err
	}
	spec = spec.Clone()
	spec.applyDefaults()

	changed := false

	dirs := []string{
		stagingPath,
		filepath.Join(stagingPath, SuperviseDir),
		filepath.Join(stagingPath, LogDir),
		filepath.Join(stagingPath, LogDir, LogMainDir),
		filepath.Join(stagingPath, LogDir, SuperviseDir),
	}
	logMainDir := filepath.Join(stagingPath, LogDir, LogMainDir)

	for _, dir := range dirs {
		created, err := ensureDir(dir)
		if err != nil {
			return changed, err
		}
		if created {
			changed = true
			if dir == logMainDir && m.LogOwner != "" {
				if err := chownToUser(dir, m.LogOwner); err != nil {
					return changed, err
				}
			}
		}
	}

	fifos := []string{
		filepath.Join(stagingPath, SuperviseDir, OKFile),
		filepath.Join(stagingPath, LogDir, SuperviseDir, OKFile),
	}
	for _, fifo := range fifos {
		created, err := ensureFIFO(fifo)
		if err != nil {
			return changed, err
		}
		if created {
			changed = true
		}
	}

	runContent, err := BuildEntryScript(m.LauncherPath, spec.StartDelay, spec.RunCommand)
	if err != nil {
		return changed, err
	}
	wrote, err := writeScript(filepath.Join(stagingPath, RunScript), runContent)
	if err != nil {
		return changed, err
	}
	changed = changed || wrote

	logContent, err := BuildEntryScript(m.LauncherPath, spec.LogStartDelay, spec.LogCommand)
	if err != nil {
		return changed, err
	}
	wrote, err = writeScript(filepath.Join(stagingPath, LogDir, RunScript), logContent)
	if err != nil {
		return changed, err
	}
	changed = changed || wrote

	return changed, nil
}

// ensureDir creates dir with DirMode if it does not exist, reporting
// whether it was created. An existing directory is left untouched.
func ensureDir(dir string) (bool, error) {
	fi, err := os.Lstat(dir)
	if err == nil {
		if !fi.IsDir() {
			return false, fmt.Errorf("svsync: %q exists and is not a directory", dir)
		}
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("inspecting %q: %w", dir, err)
	}

	if err := os.Mkdir(dir, DirMode); err != nil {
		return false, fmt.Errorf("creating directory %q: %w", dir, err)
	}
	return true, nil
}

// ensureFIFO creates a named pipe at path with FIFOMode if nothing exists
// there, reporting whether it was created.
func ensureFIFO(path string) (bool, error) {
	fi, err := os.Lstat(path)
	if err == nil {
		if fi.Mode()&os.ModeNamedPipe == 0 {
			return false, fmt.Errorf("svsync: %q exists and is not a FIFO", path)
		}
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("inspecting %q: %w", path, err)
	}

	if err := unix.Mkfifo(path, uint32(FIFOMode)); err != nil {
		return false, fmt.Errorf("creating FIFO %q: %w", path, err)
	}
	// mkfifo is subject to the umask
	if err := os.Chmod(path, FIFOMode); err != nil {
		return false, fmt.Errorf("setting mode on FIFO %q: %w", path, err)
	}
	return true, nil
}

// writeScript writes content to path atomically with ExecMode, but only
// when the existing file differs byte for byte. It reports whether a write
// happened.
func writeScript(path string, content []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, content) {
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("reading %q: %w", path, err)
	}

	if err := renameio.WriteFile(path, content, ExecMode); err != nil {
		return false, fmt.Errorf("writing %q: %w", path, err)
	}
	return true, nil
}

// chownToUser hands dir to the named user. Log content should never be
// writable as the privileged owner.
func chownToUser(dir, owner string) error {
	u, err := user.Lookup(owner)
	if err != nil {
		return fmt.Errorf("looking up user %q: %w", owner, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("parsing uid for %q: %w", owner, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("parsing gid for %q: %w", owner, err)
	}

	if err := os.Chown(dir, uid, gid); err != nil {
		return fmt.Errorf("chowning %q to %s: %w", dir, owner, err)
	}
	return nil
}
