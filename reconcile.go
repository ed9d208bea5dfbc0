package svsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Reconciler converges the staging and activation roots to a desired-state
// map: it materializes and activates every wanted service, restarts any
// service whose generated scripts changed, and tears down services no
// longer wanted.
//
// A run is a single sequential pass with no internal concurrency and no
// rollback; materialization and activation are idempotent, so re-invoking
// the reconciler is the repair strategy for interrupted runs. The
// reconciler assumes it is the sole writer under both roots.
type Reconciler struct {
	// StagingRoot holds one directory per materialized service
	StagingRoot string
	// ActivationRoot holds one symlink per service the supervisor should see
	ActivationRoot string

	control ControlClient
	mat     *Materializer
	log     *zap.SugaredLogger
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithControl sets the supervisor control client
func WithControl(c ControlClient) Option {
	return func(r *Reconciler) {
		r.control = c
	}
}

// WithMaterializer sets the service materializer
func WithMaterializer(m *Materializer) Option {
	return func(r *Reconciler) {
		r.mat = m
	}
}

// WithLogger sets the logger; the default discards everything
func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *Reconciler) {
		r.log = log
	}
}

// NewReconciler creates a Reconciler for the given staging and activation
// roots and applies any provided options.
func NewReconciler(stagingRoot, activationRoot string, opts ...Option) *Reconciler {
	r := &Reconciler{
		StagingRoot:    stagingRoot,
		ActivationRoot: activationRoot,
		control:        NewSuperviseControl(),
		mat:            NewMaterializer(),
		log:            zap.NewNop().Sugar(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Result summarizes one reconciliation run
type Result struct {
	// Created lists services materialized for the first time
	Created []string
	// Updated lists pre-existing services whose scripts changed
	Updated []string
	// Removed lists services torn down because they dropped out of
	// desired state
	Removed []string
	// Warnings collects non-fatal supervisor signaling failures; the
	// filesystem is converged even when warnings are present
	Warnings []error
}

// Run loads desired state from records and reconciles against it. Any
// load error aborts before the first filesystem mutation.
func (r *Reconciler) Run(ctx context.Context, records ...Record) (*Result, error) {
	r.log.Debugw("reconciliation starting", "phase", PhaseLoading.String())

	desired, err := Load(records...)
	if err != nil {
		return nil, err
	}

	return r.Reconcile(ctx, desired)
}

// Reconcile converges the roots to an already-loaded desired-state map.
// Services are processed in name order so runs are deterministic.
func (r *Reconciler) Reconcile(ctx context.Context, desired map[string]ServiceSpec) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, root := range []string{r.StagingRoot, r.ActivationRoot} {
		if err := os.MkdirAll(root, DirMode); err != nil {
			return nil, fmt.Errorf("creating root %q: %w", root, err)
		}
	}

	res := &Result{}
	warnings := &MultiError{}

	r.log.Debugw("materializing desired services",
		"phase", PhaseMaterializing.String(), "services", len(desired))

	for _, name := range sortedNames(desired) {
		spec := desired[name]
		stagingPath := filepath.Join(r.StagingRoot, name)
		activationPath := filepath.Join(r.ActivationRoot, name)

		_, statErr := os.Lstat(stagingPath)
		existed := statErr == nil

		changed, err := r.mat.Materialize(spec, stagingPath)
		if err != nil {
			return nil, fmt.Errorf("materializing %q: %w", name, err)
		}

		// Fail-fast: a conflict stops the run before any further service
		if err := Activate(stagingPath, activationPath); err != nil {
			return nil, err
		}

		if !changed {
			r.log.Debugw("service unchanged", "service", name)
			continue
		}

		if existed {
			res.Updated = append(res.Updated, name)
		} else {
			res.Created = append(res.Created, name)
		}

		// Fire-and-forget: the supervisor picks up new script content on
		// its own if the signal is lost
		if err := r.control.Restart(ctx, stagingPath); err != nil {
			r.log.Warnw("restart signal failed", "service", name, "error", err)
			warnings.Add(err)
		} else {
			r.log.Infow("service restarted", "service", name)
		}
	}

	r.log.Debugw("scanning observed state", "phase", PhaseDiffing.String())

	activated, err := scanRoot(r.ActivationRoot)
	if err != nil {
		return nil, err
	}
	staged, err := scanRoot(r.StagingRoot)
	if err != nil {
		return nil, err
	}

	unwantedActivated := subtract(activated, desired)
	unwantedStaged := subtract(staged, desired)

	r.log.Debugw("tearing down unwanted services",
		"phase", PhaseTearingDown.String(),
		"activated", len(unwantedActivated), "staged", len(unwantedStaged))

	// Unlink before stop before remove: the supervisor's auto-restart keys
	// off the activation link, so removing staging first could race with a
	// restart of a half-deleted service.
	for _, name := range unwantedActivated {
		if err := Deactivate(filepath.Join(r.ActivationRoot, name)); err != nil {
			return res, err
		}
		r.log.Infow("service deactivated", "service", name)
	}

	for _, name := range unwantedStaged {
		stagingPath := filepath.Join(r.StagingRoot, name)

		if err := r.control.Stop(ctx, stagingPath); err != nil {
			r.log.Warnw("stop signal failed", "service", name, "error", err)
			warnings.Add(err)
		}

		if err := os.RemoveAll(stagingPath); err != nil {
			return res, fmt.Errorf("removing %q: %w", stagingPath, err)
		}

		res.Removed = append(res.Removed, name)
		r.log.Infow("service removed", "service", name)
	}

	res.Warnings = warnings.Errors

	r.log.Debugw("reconciliation finished",
		"phase", PhaseDone.String(),
		"created", len(res.Created), "updated", len(res.Updated),
		"removed", len(res.Removed), "warnings", len(res.Warnings))

	return res, nil
}

// scanRoot lists the non-hidden entry names directly under root, sorted
func scanRoot(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %q: %w", root, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

// subtract returns the names in found that are not keys of desired, sorted
func subtract(found []string, desired map[string]ServiceSpec) []string {
	var out []string
	for _, name := range found {
		if _, ok := desired[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// sortedNames returns the keys of desired in lexical order
func sortedNames(desired map[string]ServiceSpec) []string {
	names := make([]string, 0, len(desired))
	for name := range desired {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
