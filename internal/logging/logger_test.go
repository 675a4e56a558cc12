package logging_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reframe/internal/logging"
)

func tempLogPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".log")
}

func TestConsoleLoggerWritesComponentAndSubject(t *testing.T) {
	logPath := tempLogPath(t, "console-info")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	component := logging.NewComponentLogger(logger, "runner")
	component.Info("conversion started",
		logging.String(logging.FieldSource, "/in/beach trip.mov"),
		logging.Int(logging.FieldAttempt, 2),
	)
	component.Debug("hidden at info level")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "runner: [beach trip.mov] conversion started") {
		t.Fatalf("expected component and subject prefix, got %q", line)
	}
	if !strings.Contains(line, `source="/in/beach trip.mov"`) {
		t.Fatalf("expected quoted source attribute, got %q", line)
	}
	if !strings.Contains(line, "attempt=2") {
		t.Fatalf("expected attempt attribute, got %q", line)
	}
	if strings.Contains(line, "hidden at info level") {
		t.Fatalf("debug line leaked at info level: %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", line)
	}
}

func TestConsoleLoggerFormatsClaimAndSizeFields(t *testing.T) {
	logPath := tempLogPath(t, "console-fields")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	logger.Info("claimed",
		logging.String(logging.FieldClaimToken, "6f1c2a9e-44b1-4c55-9c1e-0d2f7a1b3c4d"),
		logging.Int64(logging.FieldSize, 5*1024*1024+512*1024),
		logging.Int(logging.FieldAttempt, 3),
		logging.Any("created_at", created),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{
		"claim_token=6f1c2a9e",
		"size=5.5MiB",
		"attempt=3",
		"created_at=2026-03-01T08:30:00Z",
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "44b1") {
		t.Fatalf("expected claim token to be shortened, got %q", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := tempLogPath(t, "console-debug")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("sample")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller in debug output, got %q", content)
	}
}

func TestJSONLoggerUsesStableKeys(t *testing.T) {
	logPath := tempLogPath(t, "json-info")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.ErrorWithContext(logger, "conversion failed", "conversion_failed",
		logging.Error(errors.New("exit status 1")),
		logging.Duration("elapsed", 1500*time.Millisecond),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(content, &record); err != nil {
		t.Fatalf("decode json line %q: %v", content, err)
	}
	for _, key := range []string{"ts", "level", "msg", logging.FieldEventType, logging.FieldErrorHint} {
		if _, ok := record[key]; !ok {
			t.Fatalf("expected key %q in %v", key, record)
		}
	}
	if record["level"] != "error" {
		t.Fatalf("expected lower-case level, got %v", record["level"])
	}
	if record[logging.FieldEventType] != "conversion_failed" {
		t.Fatalf("unexpected event type: %v", record[logging.FieldEventType])
	}
	if record["elapsed"] != 1.5 {
		t.Fatalf("expected elapsed in seconds, got %v", record["elapsed"])
	}
	if ts, _ := record["ts"].(string); !strings.HasSuffix(ts, "Z") {
		t.Fatalf("expected UTC timestamp, got %v", record["ts"])
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := tempLogPath(t, "console-warn")
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "marker left behind", "marker_release_failed",
		logging.String(logging.FieldImpact, "file will look claimed"),
	)
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{"event_type=marker_release_failed", "error_hint=", `impact="file will look claimed"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	oldLog := filepath.Join(dir, "reframe-old.log")
	current := filepath.Join(dir, "reframe-current.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{oldLog, current, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{oldLog, current, other} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 5, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "reframe-*.log",
		Exclude: []string{current},
	})
	if removed != 1 {
		t.Fatalf("expected one file pruned, got %d", removed)
	}
	if _, err := os.Stat(oldLog); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, path := range []string{current, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}
