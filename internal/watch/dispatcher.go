package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"reframe/internal/layout"
	"reframe/internal/logging"
	"reframe/internal/metrics"
)

// ErrDrainTimeout is returned by Run when in-flight handlers outlive the
// drain window after shutdown.
var ErrDrainTimeout = errors.New("in-flight conversions did not finish before drain timeout")

// HandleFunc processes one accepted file. It must return once ctx is done.
type HandleFunc func(ctx context.Context, path string)

// Options configures a Dispatcher.
type Options struct {
	InputDir     string
	Extensions   []string
	MarkerSuffix string
	ScanExisting bool
	DrainTimeout time.Duration

	// Published outputs are never dispatched, even when they land in InputDir.
	OutputDir       string
	OutputSuffix    string
	OutputContainer string
}

// Dispatcher filters source events and runs the handler per accepted file.
type Dispatcher struct {
	source  Source
	handle  HandleFunc
	opts    Options
	logger  *slog.Logger
	wg      sync.WaitGroup
	mu      sync.Mutex
	running map[string]int
}

// NewDispatcher wires source to handle.
func NewDispatcher(source Source, handle HandleFunc, opts Options, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		source:  source,
		handle:  handle,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "watch"),
		running: make(map[string]int),
	}
}

// Run consumes events until ctx is canceled or the source closes, then waits
// up to DrainTimeout for in-flight handlers. The source is closed on return.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.source.Close()

	if d.opts.ScanExisting {
		d.scanExisting(ctx)
	}

	events := d.source.Events()
	errs := d.source.Errors()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case path, ok := <-events:
			if !ok {
				break loop
			}
			d.dispatch(ctx, path)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			metrics.WatcherErrorsTotal.Inc()
			logging.WarnWithContext(d.logger, "directory watcher error", "watcher_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "on network mounts set watch.mode = \"poll\""),
				logging.String(logging.FieldImpact, "some new files may be missed until the next event"),
			)
		}
	}

	_ = d.source.Close()
	return d.drain()
}

// Wait blocks until every dispatched handler has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) drain() error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	if d.opts.DrainTimeout <= 0 {
		<-done
		return nil
	}
	d.logger.Info("waiting for in-flight conversions", logging.Duration("drain_timeout", d.opts.DrainTimeout))
	timer := time.NewTimer(d.opts.DrainTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		pending := d.pending()
		logging.WarnWithContext(d.logger, "drain timeout reached", "drain_timeout",
			logging.Int("pending", len(pending)),
			logging.Any("sources", pending),
			logging.String(logging.FieldErrorHint, "raise watch.drain_timeout or encoder.kill_grace"),
			logging.String(logging.FieldImpact, "markers may remain until they are reclaimed"),
		)
		return fmt.Errorf("%w (%d pending)", ErrDrainTimeout, len(pending))
	}
}

func (d *Dispatcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(d.opts.InputDir)
	if err != nil {
		logging.WarnWithContext(d.logger, "startup scan failed", "startup_scan_failed",
			logging.String("dir", d.opts.InputDir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "files added while stopped wait for a new event"),
		)
		return
	}
	accepted := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if d.dispatch(ctx, filepath.Join(d.opts.InputDir, entry.Name())) {
			accepted++
		}
	}
	d.logger.Info("startup scan complete",
		logging.Int("entries", len(entries)),
		logging.Int("accepted", accepted),
	)
}

// dispatch filters path and starts its handler. It reports whether the path
// was accepted.
func (d *Dispatcher) dispatch(ctx context.Context, path string) bool {
	if result := d.classify(path); result != metrics.EventAccepted {
		metrics.EventsTotal.WithLabelValues(result).Inc()
		d.logger.Debug("event ignored",
			logging.String(logging.FieldSource, path),
			logging.String("result", result),
		)
		return false
	}
	metrics.EventsTotal.WithLabelValues(metrics.EventAccepted).Inc()
	d.logger.Info("video detected", logging.String(logging.FieldSource, path))

	d.wg.Add(1)
	d.track(path, 1)
	go func() {
		defer d.wg.Done()
		defer d.track(path, -1)
		d.handle(ctx, path)
	}()
	return true
}

func (d *Dispatcher) track(path string, delta int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := d.running[path] + delta; n > 0 {
		d.running[path] = n
	} else {
		delete(d.running, path)
	}
}

func (d *Dispatcher) pending() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.running))
	for path := range d.running {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (d *Dispatcher) classify(path string) string {
	if layout.IsInternal(path, d.opts.MarkerSuffix) {
		return metrics.EventIgnoredInternal
	}
	if layout.IsOutput(path, d.opts.OutputDir, d.opts.OutputSuffix, d.opts.OutputContainer) {
		return metrics.EventIgnoredOutput
	}
	if !layout.IsSupported(path, d.opts.Extensions) {
		return metrics.EventIgnoredExtension
	}
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			d.logger.Debug("stat failed", logging.String(logging.FieldSource, path), logging.Error(err))
		}
		return metrics.EventIgnoredMissing
	}
	if info.IsDir() {
		return metrics.EventIgnoredDir
	}
	return metrics.EventAccepted
}
