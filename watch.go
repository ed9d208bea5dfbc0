//go:build linux || darwin

package svsync

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// WatchEvent is one completed reconciliation run triggered by a
// configuration change.
type WatchEvent struct {
	// Result is the run summary, nil when Err is set
	Result *Result
	// Err is the fatal error that aborted the run, if any
	Err error
}

// WatchCleanupFunc stops a watch and waits for its goroutine to exit
type WatchCleanupFunc func() error

// WatchConfig reconciles once immediately and then re-runs reconciliation
// whenever a YAML file directly under configDir changes, with rapid bursts
// of changes coalesced by DefaultWatchDebounce. Every completed run (or
// fatal run error) is delivered as a WatchEvent; fatal errors do not stop
// the watch, since the next configuration edit may repair them.
func (r *Reconciler) WatchConfig(ctx context.Context, configDir string) (<-chan WatchEvent, WatchCleanupFunc, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	if err := watcher.Add(configDir); err != nil {
		_ = watcher.Close()
		return nil, nil, err
	}

	ch := make(chan WatchEvent, 4)

	// Stopper context manages the watcher goroutine lifecycle
	sctx := stopper.WithContext(ctx)

	sctx.Defer(func() {
		_ = watcher.Close()
		close(ch)
	})

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	var mu sync.Mutex
	var debouncer *time.Timer

	// Debounced runs are dispatched through trigger and executed inside the
	// watch goroutine, so at most one reconciliation is ever in flight
	// against the roots and nothing sends on ch after it is closed.
	trigger := make(chan struct{}, 1)

	runAndSend := func() {
		if sctx.IsStopping() {
			return
		}

		records, err := LoadDir(configDir)
		var ev WatchEvent
		if err != nil {
			ev = WatchEvent{Err: err}
		} else if res, runErr := r.Run(ctx, records...); runErr != nil {
			ev = WatchEvent{Err: runErr}
		} else {
			ev = WatchEvent{Result: res}
		}

		if !sctx.IsStopping() {
			select {
			case ch <- ev:
			case <-sctx.Stopping():
			}
		}
	}

	// Initial convergence before any event arrives
	runAndSend()

	sctx.Go(func(sctx *stopper.Context) error {
		sctx.Defer(func() {
			mu.Lock()
			if debouncer != nil {
				debouncer.Stop()
			}
			mu.Unlock()
		})

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case <-trigger:
				runAndSend()

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}

				if !isConfigFile(event.Name) {
					continue
				}

				mu.Lock()
				if debouncer != nil {
					debouncer.Stop()
				}
				debouncer = time.AfterFunc(DefaultWatchDebounce, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil && !sctx.IsStopping() {
					select {
					case ch <- WatchEvent{Err: err}:
					case <-sctx.Stopping():
						return nil
					}
				}
			}
		}
		return nil
	})

	return ch, cleanup, nil
}

// isConfigFile reports whether a watch event path is a YAML config file
func isConfigFile(path string) bool {
	base := filepath.Base(path)
	if len(base) == 0 || base[0] == '.' {
		return false
	}
	ext := filepath.Ext(base)
	return ext == ".yml" || ext == ".yaml"
}
