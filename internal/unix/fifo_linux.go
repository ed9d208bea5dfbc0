//go:build linux

package unix

import "golang.org/x/sys/unix"

// Mkfifo creates a named pipe at path with the given mode.
func Mkfifo(path string, mode uint32) error {
	return unix.Mkfifo(path, mode)
}
