package svsync

import (
	"io/fs"
	"time"
)

// Service directory and file constants
const (
	// SuperviseDir is the subdirectory the supervisor owns inside a service
	SuperviseDir = "supervise"

	// ControlFile is the control FIFO/socket file name inside SuperviseDir
	ControlFile = "control"

	// OKFile is the readiness FIFO file name inside SuperviseDir
	OKFile = "ok"

	// RunScript is the entry script file name
	RunScript = "run"

	// LogDir is the log sub-service directory name
	LogDir = "log"

	// LogMainDir is the directory the log forwarder writes into
	LogMainDir = "main"
)

// File modes
const (
	// DirMode is the mode for created directories
	DirMode fs.FileMode = 0o755

	// ExecMode is the mode for generated entry scripts
	ExecMode fs.FileMode = 0o755

	// FIFOMode is the mode for the supervise readiness FIFOs
	FIFOMode fs.FileMode = 0o622
)

// Defaults applied when configuration omits a value
const (
	// DefaultStartDelay is the delay in seconds before an entry script
	// execs its command when no sleep value is configured
	DefaultStartDelay = 2

	// DefaultLauncherPath is the binary entry scripts exec to launch
	// the embedded argument vector
	DefaultLauncherPath = "svsync-exec"

	// DefaultLogOwner is the unprivileged user that owns log/main
	DefaultLogOwner = "nobody"
)

// DefaultLogCommand is the log-forwarder invocation used when a service
// declares no log command of its own.
var DefaultLogCommand = []string{"chpst", "-u", "nobody", "svlogd", "-tt", "./main"}

// Control timing defaults
const (
	// DefaultDialTimeout is the timeout for control socket connections
	DefaultDialTimeout = 2 * time.Second

	// DefaultWriteTimeout is the timeout for control write operations
	DefaultWriteTimeout = 1 * time.Second

	// DefaultBackoffMin is the minimum backoff duration between retries
	DefaultBackoffMin = 10 * time.Millisecond

	// DefaultBackoffMax is the maximum backoff duration between retries
	DefaultBackoffMax = 1 * time.Second

	// DefaultMaxAttempts is the maximum number of control write attempts
	DefaultMaxAttempts = 5

	// DefaultWatchDebounce coalesces bursts of configuration changes
	// into a single reconciliation run
	DefaultWatchDebounce = 250 * time.Millisecond
)

// Signal is a single-byte supervisor control command.
type Signal byte

const (
	// SignalUp asks the supervisor to start the service (want up)
	SignalUp Signal = 'u'
	// SignalDown asks the supervisor to stop the service (want down)
	SignalDown Signal = 'd'
	// SignalTerm sends SIGTERM to the service process
	SignalTerm Signal = 't'
	// SignalCont sends SIGCONT to the service process
	SignalCont Signal = 'c'
)

// String returns the string representation of a Signal
func (s Signal) String() string {
	switch s {
	case SignalUp:
		return "up"
	case SignalDown:
		return "down"
	case SignalTerm:
		return "term"
	case SignalCont:
		return "cont"
	default:
		return "unknown"
	}
}

// restartSequence is what sv restart writes to the control FIFO
var restartSequence = []Signal{SignalTerm, SignalCont, SignalUp}

// Phase identifies the stage a reconciliation run is in.
type Phase int

const (
	// PhaseLoading is desired-state loading
	PhaseLoading Phase = iota
	// PhaseMaterializing is per-service materialization and activation
	PhaseMaterializing
	// PhaseDiffing is observed-state scanning and set difference
	PhaseDiffing
	// PhaseTearingDown is unwanted-service removal
	PhaseTearingDown
	// PhaseDone is the terminal phase
	PhaseDone
)

// String returns the string representation of a Phase
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseMaterializing:
		return "materializing"
	case PhaseDiffing:
		return "diffing"
	case PhaseTearingDown:
		return "tearing-down"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}
