package daemonrun

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reframe/internal/testsupport"
)

func TestRunLogPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	at := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	got := RunLogPath(cfg, at)
	want := filepath.Join(cfg.Logging.Dir, "reframe-20260304T050607.008Z.log")
	if got != want {
		t.Fatalf("RunLogPath = %q, want %q", got, want)
	}
}

func TestEnsureCurrentLogPointerReplacesLink(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "reframe-a.log")
	second := filepath.Join(dir, "reframe-b.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "reframe.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if !strings.Contains(string(data), "reframe-b.log") {
		t.Fatalf("pointer should resolve to latest log, got %q", data)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "info", "debug"); got != "info" {
		t.Fatalf("firstNonEmpty = %q", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Fatalf("firstNonEmpty() = %q", got)
	}
}
