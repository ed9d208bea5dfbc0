// Package svsync converges a declared set of supervised service
// definitions against the on-disk layout a runit-style supervisor polls:
// per-service staging directories with generated entry scripts, log
// sub-directories, control FIFOs, and activation symlinks.
//
// The core entry point is the Reconciler, which loads desired state,
// materializes and activates every wanted service, restarts services whose
// generated scripts changed, and tears down services that dropped out of
// desired state:
//
//	r := svsync.NewReconciler("/etc/sv", "/etc/service",
//	    svsync.WithLogger(logger.Sugar()),
//	)
//
//	records, err := svsync.LoadDir("/etc/svsync")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := r.Run(ctx, records...)
//
// # Convergence, Not Supervision
//
// svsync never supervises processes. It prepares the filesystem layout an
// always-running supervisor daemon watches, and signals that supervisor
// (restart/stop) over its control FIFOs on a best-effort basis. A run is a
// single sequential pass: materialization and activation are idempotent,
// so re-invoking the reconciler converges from any partial state.
//
// # Entry Scripts
//
// Generated entry scripts never interpolate the configured command into
// shell source. The argument vector is serialized as a JSON payload line
// appended after the script body; the script execs a launcher binary
// (cmd/svsync-exec) which reads the payload back and execs the vector
// directly, so exactly one process occupies the supervisor's slot and
// arbitrary argument content cannot inject into the script.
//
// # Design Philosophy
//
// This library prioritizes:
//
//   - Idempotent convergence (unchanged services are never bounced)
//   - Minimal mutation (byte-compare before every script rewrite)
//   - Refusal over repair (activation conflicts halt the run, nothing
//     wanted is ever destroyed)
//   - Zero external process spawning (control bytes are written straight
//     to supervise FIFOs, no sv exec)
package svsync
