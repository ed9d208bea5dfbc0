package svsync

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axondata/go-svsync/internal/unix"
)

// ControlClient is the narrow supervisor control surface the reconciler
// consumes. Both operations are best-effort from the reconciler's point of
// view: a failure is logged as a warning and never aborts the run.
type ControlClient interface {
	// Restart asks the supervisor to restart the service at servicePath
	Restart(ctx context.Context, servicePath string) error
	// Stop asks the supervisor to stop the service at servicePath
	Stop(ctx context.Context, servicePath string) error
}

// SuperviseControl signals supervisors by writing control bytes directly
// to <service>/supervise/control, without shelling out to sv. It tries a
// unix socket connection first and falls back to a non-blocking FIFO open,
// with capped exponential backoff between attempts.
type SuperviseControl struct {
	// DialTimeout is the timeout for establishing control socket connections
	DialTimeout time.Duration

	// WriteTimeout is the timeout for writing control commands
	WriteTimeout time.Duration

	// BackoffMin is the minimum duration between retry attempts
	BackoffMin time.Duration

	// BackoffMax is the maximum duration between retry attempts
	BackoffMax time.Duration

	// MaxAttempts is the maximum number of write attempts
	MaxAttempts int

	// mu protects concurrent access to send operations
	mu sync.Mutex
}

// ControlOption configures a SuperviseControl
type ControlOption func(*SuperviseControl)

// WithDialTimeout sets the timeout for control socket connections
func WithDialTimeout(d time.Duration) ControlOption {
	return func(c *SuperviseControl) {
		c.DialTimeout = d
	}
}

// WithWriteTimeout sets the timeout for control write operations
func WithWriteTimeout(d time.Duration) ControlOption {
	return func(c *SuperviseControl) {
		c.WriteTimeout = d
	}
}

// WithBackoff sets the minimum and maximum backoff durations for retries
func WithBackoff(minBackoff, maxBackoff time.Duration) ControlOption {
	return func(c *SuperviseControl) {
		c.BackoffMin = minBackoff
		c.BackoffMax = maxBackoff
	}
}

// WithMaxAttempts sets the maximum number of write attempts
func WithMaxAttempts(n int) ControlOption {
	return func(c *SuperviseControl) {
		c.MaxAttempts = n
	}
}

// NewSuperviseControl creates a SuperviseControl with default settings
func NewSuperviseControl(opts ...ControlOption) *SuperviseControl {
	c := &SuperviseControl{
		DialTimeout:  DefaultDialTimeout,
		WriteTimeout: DefaultWriteTimeout,
		BackoffMin:   DefaultBackoffMin,
		BackoffMax:   DefaultBackoffMax,
		MaxAttempts:  DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Restart signals the supervisor at servicePath to restart its service.
// It writes the same byte sequence sv restart does: term, cont, up.
func (c *SuperviseControl) Restart(ctx context.Context, servicePath string) error {
	return c.send(ctx, "restart", servicePath, restartSequence...)
}

// Stop signals the supervisor at servicePath to stop its service (want down)
func (c *SuperviseControl) Stop(ctx context.Context, servicePath string) error {
	return c.send(ctx, "stop", servicePath, SignalDown)
}

// send writes the control bytes for sigs to the service's control
// socket/FIFO in a single write, retrying with exponential backoff.
func (c *SuperviseControl) send(ctx context.Context, op, servicePath string, sigs ...Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	controlPath := filepath.Join(servicePath, SuperviseDir, ControlFile)
	cmd := make([]byte, len(sigs))
	for i, sig := range sigs {
		cmd[i] = byte(sig)
	}

	var lastErr error
	backoff := c.BackoffMin

	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > c.BackoffMax {
				backoff = c.BackoffMax
			}
		}

		conn, err := net.DialTimeout("unix", controlPath, c.DialTimeout)
		if err == nil {
			if c.WriteTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
			}

			_, werr := conn.Write(cmd)
			_ = conn.Close()
			if werr == nil {
				return nil
			}
			lastErr = werr
			continue
		}

		file, err := os.OpenFile(controlPath, os.O_WRONLY|unix.ONonblock, 0)
		if err == nil {
			_, werr := file.Write(cmd)
			_ = file.Close()
			if werr == nil {
				return nil
			}
			lastErr = werr
			continue
		}

		lastErr = err
	}

	if lastErr != nil {
		return &ControlError{Op: op, Path: controlPath, Err: lastErr}
	}
	return &ControlError{Op: op, Path: controlPath, Err: ErrControlNotReady}
}

// Ensure SuperviseControl implements ControlClient
var _ ControlClient = (*SuperviseControl)(nil)
