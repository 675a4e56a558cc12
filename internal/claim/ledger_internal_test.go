package claim

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeMarkerFile(t *testing.T, path string, m Marker) []byte {
	t.Helper()
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal marker: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	return raw
}

func TestReclaimWarnsWhenRestoreLosesToThirdClaimer(t *testing.T) {
	dir := t.TempDir()
	markerPath := filepath.Join(dir, "clip.mov.processing")

	var logs bytes.Buffer
	l := NewLedger(Options{OutputDir: dir}, slog.New(slog.NewTextHandler(&logs, nil)))
	l.alive = func(pid int) bool { return pid != 100 }

	now := time.Now().UTC()
	writeMarkerFile(t, markerPath, Marker{Token: "stale", PID: 100, Host: l.host, CreatedAt: now.Add(-time.Hour)})
	third := Marker{Token: "third", PID: 300, Host: l.host, CreatedAt: now}
	var thirdRaw []byte
	l.rename = func(oldpath, newpath string) error {
		// A second attempt replaced the stale marker before it was moved aside,
		// and a third claims the empty slot right after.
		writeMarkerFile(t, oldpath, Marker{Token: "second", PID: 200, Host: l.host, CreatedAt: now})
		if err := os.Rename(oldpath, newpath); err != nil {
			return err
		}
		thirdRaw = writeMarkerFile(t, oldpath, third)
		return nil
	}

	reclaimed, err := l.reclaimIfStale(markerPath)
	if err != nil || reclaimed {
		t.Fatalf("expected no reclaim, got reclaimed=%v err=%v", reclaimed, err)
	}
	current, err := os.ReadFile(markerPath)
	if err != nil || !bytes.Equal(current, thirdRaw) {
		t.Fatalf("expected third claimer's marker in place, got %q (err=%v)", current, err)
	}
	if leftovers, _ := filepath.Glob(markerPath + ".reclaim-*"); len(leftovers) != 0 {
		t.Fatalf("aside files left behind: %v", leftovers)
	}
	if !strings.Contains(logs.String(), "event_type=marker_restore_conflict") {
		t.Fatalf("expected restore conflict warning, got %q", logs.String())
	}
}
