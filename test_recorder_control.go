package svsync

import (
	"context"
	"sync"
)

// RecorderControl is a ControlClient test double that records the service
// paths it was asked to restart or stop, in call order, without touching a
// real supervisor.
type RecorderControl struct {
	mu sync.Mutex

	// Restarts holds the service paths passed to Restart
	Restarts []string
	// Stops holds the service paths passed to Stop
	Stops []string
	// Fail, when set, is returned from every call to simulate a
	// supervisor that cannot be signaled
	Fail error
}

// Restart records the service path and returns Fail
func (rc *RecorderControl) Restart(_ context.Context, servicePath string) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.Restarts = append(rc.Restarts, servicePath)
	return rc.Fail
}

// Stop records the service path and returns Fail
func (rc *RecorderControl) Stop(_ context.Context, servicePath string) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.Stops = append(rc.Stops, servicePath)
	return rc.Fail
}

// Calls returns the total number of recorded calls
func (rc *RecorderControl) Calls() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.Restarts) + len(rc.Stops)
}

// Ensure RecorderControl implements ControlClient
var _ ControlClient = (*RecorderControl)(nil)
