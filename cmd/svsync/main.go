// Command svsync reconciles a directory of YAML service definitions
// against a supervisor's staging and activation roots. One-shot by
// default; -watch keeps running and re-reconciles on configuration
// changes.
//
// Exit status is non-zero for configuration errors (before any filesystem
// mutation) and for activation conflicts or filesystem failures (the run
// halts at the first one). Supervisor signaling failures are warnings
// only.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	svsync "github.com/axondata/go-svsync"
)

func main() {
	var (
		configDir    = flag.String("config", "/etc/svsync", "directory of YAML service definitions")
		stagingRoot  = flag.String("staging", "/etc/sv", "staging root for service directories")
		activation   = flag.String("activation", "/etc/service", "activation root the supervisor scans")
		launcherPath = flag.String("launcher", svsync.DefaultLauncherPath, "launcher binary entry scripts exec")
		logOwner     = flag.String("log-owner", svsync.DefaultLogOwner, "user owning log/main directories (empty to skip chown)")
		watch        = flag.Bool("watch", false, "keep running and reconcile on configuration changes")
		debug        = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	cfg := zap.NewProductionConfig()
	if *debug {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "svsync: building logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	mat := svsync.NewMaterializer().
		WithLauncherPath(*launcherPath).
		WithLogOwner(*logOwner)

	r := svsync.NewReconciler(*stagingRoot, *activation,
		svsync.WithLogger(log),
		svsync.WithMaterializer(mat),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch {
		runWatch(ctx, r, *configDir, log)
		return
	}

	records, err := svsync.LoadDir(*configDir)
	if err != nil {
		log.Errorw("loading configuration failed", "dir", *configDir, "error", err)
		os.Exit(1)
	}

	res, err := r.Run(ctx, records...)
	if err != nil {
		var conflict *svsync.ConflictError
		if errors.As(err, &conflict) {
			log.Errorw("activation conflict", "path", conflict.Path, "error", err)
		} else {
			log.Errorw("reconciliation failed", "error", err)
		}
		os.Exit(1)
	}

	log.Infow("reconciliation complete",
		"created", len(res.Created),
		"updated", len(res.Updated),
		"removed", len(res.Removed),
		"warnings", len(res.Warnings),
	)
}

// runWatch blocks reconciling on configuration changes until the context
// is cancelled by a signal.
func runWatch(ctx context.Context, r *svsync.Reconciler, configDir string, log *zap.SugaredLogger) {
	ch, cleanup, err := r.WatchConfig(ctx, configDir)
	if err != nil {
		log.Errorw("starting watch failed", "dir", configDir, "error", err)
		os.Exit(1)
	}

	log.Infow("watching configuration", "dir", configDir)

	for {
		select {
		case <-ctx.Done():
			if err := cleanup(); err != nil {
				log.Warnw("watch cleanup failed", "error", err)
			}
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Err != nil {
				log.Errorw("reconciliation failed", "error", ev.Err)
				continue
			}
			log.Infow("reconciliation complete",
				"created", len(ev.Result.Created),
				"updated", len(ev.Result.Updated),
				"removed", len(ev.Result.Removed),
				"warnings", len(ev.Result.Warnings),
			)
		}
	}
}
