// Package readiness decides when a freshly created file has finished being
// written. It samples the file size at a fixed interval and reports ready once
// two consecutive samples agree on a nonzero size.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"reframe/internal/logging"
)

const (
	DefaultInterval = time.Second
	DefaultTimeout  = 30 * time.Second
)

var (
	// ErrTimeout reports that the file never settled before the deadline.
	ErrTimeout = errors.New("file did not stabilize before timeout")
	// ErrNotRegular reports that the path is a directory or device.
	ErrNotRegular = errors.New("not a regular file")
)

// StatFunc returns file metadata for path.
type StatFunc func(path string) (fs.FileInfo, error)

// Sample is the last observation made by Wait.
type Sample struct {
	Size            int64
	ModTime         time.Time
	Samples         int
	TransientErrors int
	Elapsed         time.Duration
}

// Checker waits for files to stop growing.
type Checker struct {
	interval time.Duration
	timeout  time.Duration
	stat     StatFunc
	logger   *slog.Logger
}

// Option customizes a Checker.
type Option func(*Checker)

// WithStat replaces os.Stat, which lets tests feed size sequences.
func WithStat(fn StatFunc) Option {
	return func(p *Checker) {
		if fn != nil {
			p.stat = fn
		}
	}
}

// WithLogger attaches a logger for debug sampling output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Checker) {
		if logger != nil {
			p.logger = logging.NewComponentLogger(logger, "readiness")
		}
	}
}

// New builds a checker. Non-positive durations fall back to the defaults.
func New(interval, timeout time.Duration, opts ...Option) *Checker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &Checker{
		interval: interval,
		timeout:  timeout,
		stat:     os.Stat,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait blocks until path is ready, the timeout elapses, or ctx is canceled.
// Stat failures are treated as "not ready yet" and never returned; the file
// may not be visible or may be locked by the writer for a moment.
func (p *Checker) Wait(ctx context.Context, path string) (Sample, error) {
	start := time.Now()
	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()

	var (
		sample   Sample
		previous int64 = -1
	)
	for {
		info, err := p.stat(path)
		sample.Samples++
		switch {
		case err != nil:
			sample.TransientErrors++
			previous = -1
			p.logger.Debug("readiness sample failed",
				logging.String(logging.FieldSource, path),
				logging.Int("sample", sample.Samples),
				logging.Error(err),
			)
		case !info.Mode().IsRegular():
			sample.Elapsed = time.Since(start)
			return sample, fmt.Errorf("readiness %s: %w", path, ErrNotRegular)
		default:
			size := info.Size()
			sample.Size = size
			sample.ModTime = info.ModTime()
			p.logger.Debug("readiness sample",
				logging.String(logging.FieldSource, path),
				logging.Int("sample", sample.Samples),
				logging.Int64(logging.FieldSize, size),
			)
			if size > 0 && size == previous {
				sample.Elapsed = time.Since(start)
				return sample, nil
			}
			previous = size
		}

		select {
		case <-ctx.Done():
			sample.Elapsed = time.Since(start)
			return sample, ctx.Err()
		case <-deadline.C:
			sample.Elapsed = time.Since(start)
			return sample, fmt.Errorf("readiness %s after %s (last size %d): %w", path, p.timeout, sample.Size, ErrTimeout)
		case <-time.After(p.interval):
		}
	}
}
