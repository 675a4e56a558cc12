package claim

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"reframe/internal/layout"
	"reframe/internal/logging"
	"reframe/internal/metrics"
)

var (
	// ErrAlreadyClaimed means a live marker exists for the source.
	ErrAlreadyClaimed = errors.New("source already claimed")
	// ErrAlreadyDone means the converted output already exists.
	ErrAlreadyDone = errors.New("output already exists")
	// ErrClaimFailed means the marker could not be created (permissions, I/O).
	ErrClaimFailed = errors.New("claim marker could not be created")
)

// Options configures a Ledger.
type Options struct {
	OutputDir       string
	OutputSuffix    string
	OutputContainer string
	MarkerSuffix    string
	// StaleAfter is the marker age after which it is reclaimable regardless of
	// owner. Zero disables age-based reclaim.
	StaleAfter time.Duration
}

// Marker is the JSON body of a claim marker.
type Marker struct {
	Token     string    `json:"token"`
	PID       int       `json:"pid"`
	Host      string    `json:"host"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger creates and removes claim markers.
type Ledger struct {
	opts   Options
	logger *slog.Logger
	host   string
	pid    int
	now    func() time.Time
	alive  func(pid int) bool
	rename func(oldpath, newpath string) error
}

// NewLedger builds a ledger for the given output naming and marker settings.
func NewLedger(opts Options, logger *slog.Logger) *Ledger {
	if opts.MarkerSuffix == "" {
		opts.MarkerSuffix = ".processing"
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Ledger{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "claim"),
		host:   host,
		pid:    os.Getpid(),
		now:    time.Now,
		alive:  processAlive,
		rename: os.Rename,
	}
}

// OutputPath returns the artifact whose existence means source is done.
func (l *Ledger) OutputPath(source string) string {
	return layout.OutputPath(l.opts.OutputDir, source, l.opts.OutputSuffix, l.opts.OutputContainer)
}

// MarkerPath returns the claim marker path for source.
func (l *Ledger) MarkerPath(source string) string {
	return layout.MarkerPath(source, l.opts.MarkerSuffix)
}

// MarkerSuffix returns the configured marker suffix.
func (l *Ledger) MarkerSuffix() string {
	return l.opts.MarkerSuffix
}

// TryClaim takes exclusive ownership of source. The output is checked before
// the marker so finished work never gets a marker at all.
func (l *Ledger) TryClaim(source string) (*Claim, error) {
	output := l.OutputPath(source)
	if _, err := os.Stat(output); err == nil {
		return nil, fmt.Errorf("claim %s: %w", source, ErrAlreadyDone)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("claim %s: stat output: %w: %w", source, ErrClaimFailed, err)
	}

	markerPath := l.MarkerPath(source)
	// Second pass only runs after a stale marker was moved aside.
	for pass := 0; pass < 2; pass++ {
		c, err := l.create(source, markerPath, output)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("claim %s: %w: %w", source, ErrClaimFailed, err)
		}
		reclaimed, err := l.reclaimIfStale(markerPath)
		if err != nil {
			return nil, fmt.Errorf("claim %s: reclaim stale marker: %w: %w", source, ErrClaimFailed, err)
		}
		if !reclaimed {
			break
		}
	}
	return nil, fmt.Errorf("claim %s: %w", source, ErrAlreadyClaimed)
}

// Release removes the marker for source unconditionally. A missing marker is
// not an error, so releasing twice is safe.
func (l *Ledger) Release(source string) error {
	return removeMarker(l.MarkerPath(source))
}

func (l *Ledger) create(source, markerPath, output string) (*Claim, error) {
	file, err := os.OpenFile(markerPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	marker := Marker{
		Token:     uuid.NewString(),
		PID:       l.pid,
		Host:      l.host,
		CreatedAt: l.now().UTC(),
	}
	body, err := json.Marshal(marker)
	if err == nil {
		_, err = file.Write(append(body, '\n'))
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(markerPath)
		return nil, fmt.Errorf("write marker: %w", err)
	}
	return &Claim{
		Source: source,
		Marker: markerPath,
		Output: output,
		Token:  marker.Token,
	}, nil
}

// reclaimIfStale moves a stale marker aside and reports whether it did. The
// marker is renamed to a unique name first and compared with what was
// judged stale, so a live marker created in between is put back untouched.
func (l *Ledger) reclaimIfStale(markerPath string) (bool, error) {
	raw, info, err := readMarker(markerPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Released between our create and read; try again.
			return true, nil
		}
		return false, err
	}
	status := l.evaluate(raw, info.ModTime())
	if !status.Stale {
		return false, nil
	}

	aside := markerPath + ".reclaim-" + uuid.NewString()
	if err := l.rename(markerPath, aside); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	current, err := os.ReadFile(aside)
	if err != nil {
		return false, err
	}
	if !bytes.Equal(current, raw) {
		// Another attempt replaced the stale marker; restore theirs.
		switch linkErr := os.Link(aside, markerPath); {
		case linkErr == nil:
		case errors.Is(linkErr, fs.ErrExist):
			// A third attempt created a marker while the other owner's was aside.
			logging.WarnWithContext(l.logger, "concurrent marker lost during reclaim", "marker_restore_conflict",
				logging.String("marker", markerPath),
				logging.Error(linkErr),
				logging.String(logging.FieldErrorHint, "two attempts raced on a stale marker; check history for this source"),
				logging.String(logging.FieldImpact, "two attempts may convert this file at once; only one output is published"),
			)
		default:
			logging.WarnWithContext(l.logger, "failed to restore concurrently created marker", "marker_restore_failed",
				logging.String("marker", markerPath),
				logging.Error(linkErr),
				logging.String(logging.FieldErrorHint, "check input directory permissions"),
				logging.String(logging.FieldImpact, "a concurrent attempt may run twice"),
			)
		}
		_ = os.Remove(aside)
		return false, nil
	}
	if err := os.Remove(aside); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	metrics.MarkersReclaimedTotal.WithLabelValues(status.Reason).Inc()
	l.logger.Info("reclaimed stale marker",
		logging.String("marker", markerPath),
		logging.String("reason", status.Reason),
		logging.Int("owner_pid", status.Marker.PID),
		logging.String("owner_host", status.Marker.Host),
		logging.Duration("age", status.Age),
		logging.String(logging.FieldEventType, "marker_reclaimed"),
	)
	return true, nil
}

func readMarker(path string) ([]byte, fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return raw, info, nil
}

func removeMarker(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove marker %s: %w", path, err)
	}
	return nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Claim is exclusive ownership of one source for one attempt.
type Claim struct {
	Source string
	Marker string
	Output string
	Token  string

	once sync.Once
	err  error
}

// Release removes the marker if it still carries this claim's token. It is
// idempotent; later calls return the first result.
func (c *Claim) Release() error {
	if c == nil {
		return nil
	}
	c.once.Do(func() {
		raw, err := os.ReadFile(c.Marker)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				c.err = removeMarker(c.Marker)
			}
			return
		}
		var marker Marker
		if json.Unmarshal(raw, &marker) == nil && marker.Token != "" && marker.Token != c.Token {
			// Reclaimed by another attempt after ours was judged stale.
			return
		}
		c.err = removeMarker(c.Marker)
	})
	return c.err
}
