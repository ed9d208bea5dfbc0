package svsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRoots struct {
	staging    string
	activation string
}

func newTestReconciler(t *testing.T, control ControlClient) (*Reconciler, testRoots) {
	t.Helper()
	tmpDir := t.TempDir()
	roots := testRoots{
		staging:    filepath.Join(tmpDir, "sv"),
		activation: filepath.Join(tmpDir, "service"),
	}
	r := NewReconciler(roots.staging, roots.activation,
		WithControl(control),
		WithMaterializer(testMaterializer()),
	)
	return r, roots
}

func desiredOne(name string) map[string]ServiceSpec {
	return map[string]ServiceSpec{
		name: {Name: name, RunCommand: []string{"sleep", "1"}, StartDelay: 2},
	}
}

func TestReconcileConvergence(t *testing.T) {
	rec := &RecorderControl{}
	r, roots := newTestReconciler(t, rec)
	ctx := context.Background()

	res, err := r.Reconcile(ctx, desiredOne("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Created)
	assert.Empty(t, res.Updated)
	assert.Empty(t, res.Removed)
	assert.Empty(t, res.Warnings)

	// Fully structured staging tree
	for _, rel := range []string{
		"a/run",
		"a/supervise/ok",
		"a/log/run",
		"a/log/main",
		"a/log/supervise/ok",
	} {
		_, err := os.Lstat(filepath.Join(roots.staging, rel))
		assert.NoError(t, err, rel)
	}

	// Activation link points at staging
	target, err := os.Readlink(filepath.Join(roots.activation, "a"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(roots.staging, "a"), target)

	firstCalls := rec.Calls()

	// Second run with identical desired state: zero restart signals
	res, err = r.Reconcile(ctx, desiredOne("a"))
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Empty(t, res.Updated)
	assert.Empty(t, res.Removed)
	assert.Equal(t, firstCalls, rec.Calls())
}

func TestReconcileUpdateRestarts(t *testing.T) {
	rec := &RecorderControl{}
	r, roots := newTestReconciler(t, rec)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, desiredOne("a"))
	require.NoError(t, err)

	changed := map[string]ServiceSpec{
		"a": {Name: "a", RunCommand: []string{"sleep", "60"}, StartDelay: 2},
	}
	res, err := r.Reconcile(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Updated)
	assert.Empty(t, res.Created)

	stagingA := filepath.Join(roots.staging, "a")
	require.NotEmpty(t, rec.Restarts)
	assert.Equal(t, stagingA, rec.Restarts[len(rec.Restarts)-1])
}

func TestReconcileTeardown(t *testing.T) {
	rec := &RecorderControl{}
	r, roots := newTestReconciler(t, rec)
	ctx := context.Background()

	// Pre-existing well-formed service "b"
	_, err := r.Reconcile(ctx, desiredOne("b"))
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, map[string]ServiceSpec{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Removed)

	_, err = os.Lstat(filepath.Join(roots.activation, "b"))
	assert.True(t, os.IsNotExist(err), "activation link still present")

	_, err = os.Lstat(filepath.Join(roots.staging, "b"))
	assert.True(t, os.IsNotExist(err), "staging tree still present")

	assert.Equal(t, []string{filepath.Join(roots.staging, "b")}, rec.Stops)
}

func TestReconcileRename(t *testing.T) {
	rec := &RecorderControl{}
	r, roots := newTestReconciler(t, rec)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, desiredOne("old"))
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, desiredOne("new"))
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, res.Created)
	assert.Equal(t, []string{"old"}, res.Removed)

	_, err = os.Lstat(filepath.Join(roots.staging, "old"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Lstat(filepath.Join(roots.staging, "new", "run"))
	assert.NoError(t, err)

	assert.Contains(t, rec.Stops, filepath.Join(roots.staging, "old"))
}

func TestReconcileConflictFailFast(t *testing.T) {
	rec := &RecorderControl{}
	r, roots := newTestReconciler(t, rec)
	ctx := context.Background()

	// Occupy a's activation path with a plain file
	require.NoError(t, os.MkdirAll(roots.activation, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(roots.activation, "a"), []byte("x"), 0o644))

	desired := desiredOne("a")
	desired["z"] = ServiceSpec{Name: "z", RunCommand: []string{"true"}}

	_, err := r.Reconcile(ctx, desired)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))

	// Halted at the first conflict: z (after a in name order) untouched
	_, statErr := os.Lstat(filepath.Join(roots.staging, "z"))
	assert.True(t, os.IsNotExist(statErr), "service after conflict was processed")
}

func TestReconcileSignalFailureIsWarning(t *testing.T) {
	rec := &RecorderControl{Fail: errors.New("supervisor unreachable")}
	r, roots := newTestReconciler(t, rec)
	ctx := context.Background()

	res, err := r.Reconcile(ctx, desiredOne("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Created)
	require.Len(t, res.Warnings, 1)

	// Filesystem converged despite the failed signal
	_, statErr := os.Lstat(filepath.Join(roots.staging, "a", "run"))
	assert.NoError(t, statErr)
}

func TestReconcileSkipsHiddenEntries(t *testing.T) {
	rec := &RecorderControl{}
	r, roots := newTestReconciler(t, rec)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(roots.staging, ".tmp-build"), 0o755))
	require.NoError(t, os.MkdirAll(roots.activation, 0o755))

	res, err := r.Reconcile(ctx, map[string]ServiceSpec{})
	require.NoError(t, err)
	assert.Empty(t, res.Removed)

	_, statErr := os.Lstat(filepath.Join(roots.staging, ".tmp-build"))
	assert.NoError(t, statErr, "hidden entry was torn down")
}

func TestRunLoadErrorBeforeMutation(t *testing.T) {
	rec := &RecorderControl{}
	r, roots := newTestReconciler(t, rec)
	ctx := context.Background()

	records := []Record{
		{Source: "a.yml", Services: map[string]map[string]any{
			"x": {"run": []any{"one"}},
		}},
		{Source: "b.yml", Services: map[string]map[string]any{
			"x": {"run": []any{"two"}},
		}},
	}

	_, err := r.Run(ctx, records...)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateService)

	// No filesystem mutation at all, not even the roots
	_, statErr := os.Lstat(roots.staging)
	assert.True(t, os.IsNotExist(statErr))
	assert.Zero(t, rec.Calls())
}

func TestRunFromRecords(t *testing.T) {
	rec := &RecorderControl{}
	r, roots := newTestReconciler(t, rec)
	ctx := context.Background()

	records := []Record{
		{Source: "a.yml", Services: map[string]map[string]any{
			"a": {"run": []any{"sleep", "1"}},
		}},
	}

	res, err := r.Run(ctx, records...)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Created)

	argv, delay, err := ParseEntryScript(mustRead(t, filepath.Join(roots.staging, "a", "run")))
	require.NoError(t, err)
	assert.Equal(t, []string{"sleep", "1"}, argv)
	assert.Equal(t, DefaultStartDelay, delay)
}
