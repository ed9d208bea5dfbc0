//go:build darwin

package unix

import "syscall"

// Mkfifo creates a named pipe at path with the given mode.
func Mkfifo(path string, mode uint32) error {
	return syscall.Mkfifo(path, mode)
}
