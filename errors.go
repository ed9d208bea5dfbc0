package svsync

import (
	"errors"
	"fmt"
)

// Common errors returned by svsync operations
var (
	// ErrEmptyRecord indicates a configuration record defines no services
	ErrEmptyRecord = errors.New("svsync: empty configuration record")

	// ErrRunMissing indicates a service has no run command or the run
	// value is not a sequence of strings
	ErrRunMissing = errors.New("svsync: run command missing or not a sequence")

	// ErrLogNotSequence indicates a log value that is not a sequence of strings
	ErrLogNotSequence = errors.New("svsync: log command is not a sequence")

	// ErrDuplicateService indicates the same service name appears in more
	// than one configuration record
	ErrDuplicateService = errors.New("svsync: duplicate service name")

	// ErrNoPayload indicates an entry script carries no payload line
	ErrNoPayload = errors.New("svsync: entry script has no payload line")

	// ErrControlNotReady indicates the control FIFO/socket is not accepting writes
	ErrControlNotReady = errors.New("svsync: control not accepting writes")
)

// LoadError reports a fatal problem with a configuration record. No
// filesystem mutation happens after a LoadError.
type LoadError struct {
	// Source identifies the configuration record (file path or label)
	Source string
	// Name is the offending service name, empty for record-level problems
	Name string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *LoadError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("svsync: load %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("svsync: load %s: service %q: %v", e.Source, e.Name, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *LoadError) Unwrap() error {
	return e.Err
}

// ConflictError reports an activation path occupied by something other than
// the expected symlink. It is never auto-resolved.
type ConflictError struct {
	// Path is the occupied activation path
	Path string
	// Target is the occupant's symlink target, empty if not a symlink
	Target string
	// Want is the staging path the symlink should point at
	Want string
}

// Error returns a formatted error message
func (e *ConflictError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("svsync: activation path %q exists and is not a symlink (want link to %q)", e.Path, e.Want)
	}
	return fmt.Sprintf("svsync: activation path %q points at %q, want %q", e.Path, e.Target, e.Want)
}

// ControlError represents a failed supervisor control operation
type ControlError struct {
	// Op is the control operation that failed
	Op string
	// Path is the control FIFO/socket path
	Path string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *ControlError) Error() string {
	return fmt.Sprintf("svsync: %s %q: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ControlError) Unwrap() error {
	return e.Err
}

// MultiError aggregates multiple non-fatal errors from a reconciliation run
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
