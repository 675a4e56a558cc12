package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reframe/internal/config"
	"reframe/internal/history"
	"reframe/internal/job"
	"reframe/internal/logging"
	"reframe/internal/metrics"
	"reframe/internal/notifications"
	"reframe/internal/preflight"
	"reframe/internal/watch"
)

// ErrAlreadyRunning means another process holds the state directory lock.
var ErrAlreadyRunning = errors.New("another reframe daemon instance is already running")

// Daemon watches the input directory and converts new videos until stopped.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *history.Store
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running    atomic.Bool
	metricsURL atomic.Value
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	HistoryPath  string
	LockFilePath string
	MetricsAddr  string
}

// New constructs a daemon. notifier may be nil.
func New(cfg *config.Config, store *history.Store, logger *slog.Logger, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and history store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Run holds the lock and processes events until ctx is canceled. It returns
// nil on a clean, signal-driven shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, d.lockPath)
	}
	d.running.Store(true)
	defer func() {
		d.running.Store(false)
		if err := d.lock.Unlock(); err != nil {
			logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
				logging.String("lock", d.lockPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "lock is released when the process exits"),
			)
		}
	}()

	if err := preflight.Failures(preflight.RunAll(ctx, d.cfg)); err != nil {
		logging.ErrorWithContext(d.logger, "preflight checks failed", "preflight_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `reframe check` for details"),
		)
		return fmt.Errorf("preflight: %w", err)
	}

	d.recover(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metricsServer *metrics.Server
	if bind := strings.TrimSpace(d.cfg.Metrics.Bind); bind != "" {
		metricsServer, err = metrics.Start(runCtx, bind, d.logger)
		if err != nil {
			return err
		}
		d.metricsURL.Store(metricsServer.Addr())
	}

	runner, err := job.NewRunnerFromConfig(d.cfg, d.store, d.notifier, d.logger)
	if err != nil {
		return fmt.Errorf("build runner: %w", err)
	}
	source, err := d.openSource()
	if err != nil {
		return err
	}
	dispatcher := watch.NewDispatcher(source, func(ctx context.Context, path string) {
		runner.Handle(ctx, path)
	}, watch.Options{
		InputDir:     d.cfg.Paths.InputDir,
		Extensions:   d.cfg.Watch.Extensions,
		MarkerSuffix: d.cfg.Claim.MarkerSuffix,
		ScanExisting: d.cfg.Watch.ScanExisting,
		DrainTimeout: d.cfg.DrainTimeout(),

		OutputDir:       d.cfg.Paths.OutputDir,
		OutputSuffix:    d.cfg.Output.Suffix,
		OutputContainer: d.cfg.Output.Container,
	}, d.logger)

	d.logger.Info("reframe daemon started",
		logging.String("input_dir", d.cfg.Paths.InputDir),
		logging.String("output_dir", d.cfg.Paths.OutputDir),
		logging.String("mode", d.cfg.Watch.Mode),
		logging.String("lock", d.lockPath),
	)
	runErr := dispatcher.Run(runCtx)
	cancel()
	if metricsServer != nil {
		metricsServer.Wait()
	}
	d.logger.Info("reframe daemon stopped")
	return runErr
}

// recover repairs state left by an unclean shutdown.
func (d *Daemon) recover(ctx context.Context) {
	if n, err := d.store.ResetInterrupted(ctx); err != nil {
		logging.WarnWithContext(d.logger, "history reset failed", "history_reset_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "history may show stale converting rows"),
		)
	} else if n > 0 {
		d.logger.Info("reset interrupted conversions", logging.Int64("count", n))
	}

	ledger := job.LedgerFromConfig(d.cfg, d.logger)
	removed, err := ledger.Sweep(d.cfg.Paths.InputDir)
	if err != nil {
		logging.WarnWithContext(d.logger, "marker sweep failed", "marker_sweep_failed",
			logging.String("dir", d.cfg.Paths.InputDir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale markers are reclaimed lazily on the next event"),
		)
	}
	for _, status := range removed {
		d.logger.Info("stale marker removed",
			logging.String(logging.FieldSource, status.Source),
			logging.String("reason", status.Reason),
			logging.Duration("age", status.Age),
		)
	}
}

func (d *Daemon) openSource() (watch.Source, error) {
	switch d.cfg.Watch.Mode {
	case "poll":
		src, err := watch.NewPollSource(d.cfg.Paths.InputDir, d.cfg.PollInterval(), d.logger)
		if err != nil {
			return nil, fmt.Errorf("start poll watcher: %w", err)
		}
		return src, nil
	default:
		src, err := watch.NewNotifySource(d.cfg.Paths.InputDir)
		if err != nil {
			return nil, fmt.Errorf("start directory watcher: %w", err)
		}
		return src, nil
	}
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	addr, _ := d.metricsURL.Load().(string)
	return Status{
		Running:      d.running.Load(),
		HistoryPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		MetricsAddr:  addr,
	}
}
