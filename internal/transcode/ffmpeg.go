package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"reframe/internal/fileutil"
	"reframe/internal/logging"
)

var (
	// ErrLaunch means ffmpeg could not be started at all.
	ErrLaunch = errors.New("ffmpeg launch failed")
	// ErrOutputExists means the output appeared while ffmpeg was running; the
	// new result was discarded.
	ErrOutputExists = errors.New("output already exists")
	// ErrNoOutput means ffmpeg exited zero without writing anything.
	ErrNoOutput = errors.New("ffmpeg produced no output")
	// ErrPartialInUse means another attempt already owns the job's partial file.
	ErrPartialInUse = errors.New("partial file in use")
)

// ExitError reports a nonzero ffmpeg exit.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if line := lastLine(e.Stderr); line != "" {
		return fmt.Sprintf("ffmpeg exited with status %d: %s", e.Code, line)
	}
	return fmt.Sprintf("ffmpeg exited with status %d", e.Code)
}

const defaultStderrTail = 8 << 10

// FFmpeg runs conversion jobs.
type FFmpeg struct {
	binary    string
	killGrace time.Duration
	logDir    string
	logger    *slog.Logger
}

// Option configures an FFmpeg runner.
type Option func(*FFmpeg)

// WithToolLogDir tees ffmpeg stderr into <dir>/<output base>.ffmpeg.log.
func WithToolLogDir(dir string) Option {
	return func(f *FFmpeg) {
		f.logDir = strings.TrimSpace(dir)
	}
}

// NewFFmpeg builds a runner for binary. killGrace is the delay between SIGTERM
// and SIGKILL when the context is canceled.
func NewFFmpeg(binary string, killGrace time.Duration, logger *slog.Logger, opts ...Option) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	f := &FFmpeg{
		binary:    binary,
		killGrace: killGrace,
		logger:    logging.NewComponentLogger(logger, "ffmpeg"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run executes job and publishes the output. The partial file is removed on
// every failure path.
func (f *FFmpeg) Run(ctx context.Context, job Job) error {
	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := reservePartial(job.Partial); err != nil {
		return err
	}

	tail := newTailBuffer(defaultStderrTail)
	var stderr io.Writer = tail
	if toolLog := f.openToolLog(job); toolLog != nil {
		defer toolLog.Close()
		stderr = io.MultiWriter(tail, toolLog)
	}

	cmd := exec.CommandContext(ctx, f.binary, job.Args...) //nolint:gosec
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(unix.SIGTERM)
	}
	cmd.WaitDelay = f.killGrace

	f.logger.Debug("ffmpeg command",
		logging.String(logging.FieldSource, job.Source),
		logging.String("command", f.binary+" "+strings.Join(job.Args, " ")),
	)

	if err := cmd.Start(); err != nil {
		_ = os.Remove(job.Partial)
		return fmt.Errorf("%w: %s: %w", ErrLaunch, f.binary, err)
	}
	waitErr := cmd.Wait()
	if waitErr != nil {
		_ = os.Remove(job.Partial)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode(), Stderr: tail.String()}
		}
		return fmt.Errorf("ffmpeg wait: %w", waitErr)
	}

	info, err := os.Stat(job.Partial)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(job.Partial)
		return fmt.Errorf("%w: %s", ErrNoOutput, job.Partial)
	}

	if err := fileutil.PublishNoClobber(job.Partial, job.Output); err != nil {
		_ = os.Remove(job.Partial)
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", job.Output, ErrOutputExists)
		}
		return err
	}
	return nil
}

func (f *FFmpeg) openToolLog(job Job) io.WriteCloser {
	if f.logDir == "" {
		return nil
	}
	if err := os.MkdirAll(f.logDir, 0o755); err != nil {
		return nil
	}
	path := filepath.Join(f.logDir, filepath.Base(job.Output)+".ffmpeg.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logging.WarnWithContext(f.logger, "ffmpeg log unavailable", "tool_log_open_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check logging.dir permissions"),
			logging.String(logging.FieldImpact, "ffmpeg stderr kept only in memory"),
		)
		return nil
	}
	fmt.Fprintf(file, "=== %s %s\n", time.Now().Format(time.RFC3339), job.Source)
	return file
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// reservePartial creates the partial file exclusively so no other attempt can
// write to or publish it. ffmpeg overwrites the empty file with -y.
func reservePartial(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrPartialInUse, path)
		}
		return fmt.Errorf("reserve partial: %w", err)
	}
	return f.Close()
}
