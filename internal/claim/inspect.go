package claim

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"reframe/internal/layout"
	"reframe/internal/logging"
)

// Stale reasons.
const (
	ReasonLive      = ""
	ReasonOwnerGone = "owner_gone"
	ReasonExpired   = "expired"
)

// Status describes one marker found on disk.
type Status struct {
	Path   string
	Source string
	Marker Marker
	Parsed bool
	Age    time.Duration
	Stale  bool
	Reason string
}

func (l *Ledger) evaluate(raw []byte, modTime time.Time) Status {
	var status Status
	if err := json.Unmarshal(raw, &status.Marker); err == nil && !status.Marker.CreatedAt.IsZero() {
		status.Parsed = true
	}
	created := modTime
	if status.Parsed {
		created = status.Marker.CreatedAt
	}
	status.Age = l.now().Sub(created)
	if status.Age < 0 {
		status.Age = 0
	}

	if status.Parsed && status.Marker.Host == l.host && !l.alive(status.Marker.PID) {
		status.Stale = true
		status.Reason = ReasonOwnerGone
		return status
	}
	if l.opts.StaleAfter > 0 && status.Age > l.opts.StaleAfter {
		status.Stale = true
		status.Reason = ReasonExpired
	}
	return status
}

// Inspect lists the claim markers directly inside dir, oldest first.
func (l *Ledger) Inspect(dir string) ([]Status, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read marker directory %s: %w", dir, err)
	}
	var out []Status
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), l.opts.MarkerSuffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, info, err := readMarker(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read marker %s: %w", path, err)
		}
		status := l.evaluate(raw, info.ModTime())
		status.Path = path
		status.Source, _ = layout.SourceForMarker(path, l.opts.MarkerSuffix)
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Age > out[j].Age })
	return out, nil
}

// Sweep reclaims every stale marker in dir and returns what was removed.
// Live markers are left alone.
func (l *Ledger) Sweep(dir string) ([]Status, error) {
	statuses, err := l.Inspect(dir)
	if err != nil {
		return nil, err
	}
	var removed []Status
	var errs []error
	for _, status := range statuses {
		if !status.Stale {
			continue
		}
		ok, err := l.reclaimIfStale(status.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", status.Path, err))
			continue
		}
		if ok {
			removed = append(removed, status)
		}
	}
	if len(removed) > 0 {
		l.logger.Info("stale markers swept",
			logging.String("dir", dir),
			logging.Int("removed", len(removed)),
			logging.String(logging.FieldEventType, "marker_sweep"),
		)
	}
	return removed, errors.Join(errs...)
}
