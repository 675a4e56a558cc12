package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reframe/internal/claim"
	"reframe/internal/config"
	"reframe/internal/history"
	"reframe/internal/job"
	"reframe/internal/testsupport"
)

func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--log-level", "error"}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestConvertCommandProducesVerticalVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegStub(0))
	configPath := writeConfig(t, cfg)
	src := filepath.Join(cfg.Paths.InputDir, "beach trip.mov")
	testsupport.WriteFile(t, src, 1024)

	out, err := runCLI(t, configPath, "convert", src)
	if err != nil {
		t.Fatalf("convert: %v (output %q)", err, out)
	}
	output := job.LedgerFromConfig(cfg, nil).OutputPath(src)
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected output %s: %v", output, err)
	}
	if !strings.Contains(out, "[OK]") {
		t.Fatalf("expected OK status line, got %q", out)
	}

	again, err := runCLI(t, configPath, "convert", src)
	if err != nil {
		t.Fatalf("second convert: %v", err)
	}
	if !strings.Contains(again, "Already Done") {
		t.Fatalf("expected already done on second run, got %q", again)
	}
	if got := testsupport.InvocationsAt(t, cfg.Encoder.FFmpegBinary); got != 1 {
		t.Fatalf("expected exactly one ffmpeg run, got %d", got)
	}
}

func TestConvertCommandSkipsUnsupportedExtension(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegStub(0))
	configPath := writeConfig(t, cfg)
	notes := filepath.Join(cfg.Paths.InputDir, "notes.txt")
	testsupport.WriteFile(t, notes, 16)

	out, err := runCLI(t, configPath, "convert", notes)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(out, "unsupported extension") {
		t.Fatalf("expected unsupported warning, got %q", out)
	}
	if got := testsupport.InvocationsAt(t, cfg.Encoder.FFmpegBinary); got != 0 {
		t.Fatalf("expected no ffmpeg runs, got %d", got)
	}
}

func TestHistoryAndRetryCommands(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeConfig(t, cfg)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	src := filepath.Join(cfg.Paths.InputDir, "corrupt.mp4")
	if _, err := store.StartAttempt(ctx, src, "/out/corrupt_vertical.mp4", "tok"); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if err := store.Finish(ctx, src, history.Result{Status: history.StatusPoisoned, Error: "ffmpeg exited with status 1", Reason: job.ReasonRetriesExhausted}); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	out, err := runCLI(t, configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{"corrupt.mp4", "Poisoned", "ffmpeg exited with status 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in history output:\n%s", want, out)
		}
	}

	out, err = runCLI(t, configPath, "history", "--status", "succeeded")
	if err != nil {
		t.Fatalf("history --status: %v", err)
	}
	if !strings.Contains(out, "No conversions recorded") {
		t.Fatalf("expected empty filtered history, got %q", out)
	}
	if _, err := runCLI(t, configPath, "history", "--status", "bogus"); err == nil {
		t.Fatal("expected error for unknown status")
	}

	out, err = runCLI(t, configPath, "retry", src)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !strings.Contains(out, "reset from Poisoned") {
		t.Fatalf("unexpected retry output %q", out)
	}
	poisoned, err := store.IsPoisoned(ctx, src)
	if err != nil || poisoned {
		t.Fatalf("expected poison cleared: poisoned=%v err=%v", poisoned, err)
	}

	out, err = runCLI(t, configPath, "retry", filepath.Join(cfg.Paths.InputDir, "unknown.mp4"))
	if err != nil {
		t.Fatalf("retry unknown: %v", err)
	}
	if !strings.Contains(out, "not in history") {
		t.Fatalf("expected not-in-history warning, got %q", out)
	}
}

func TestMarkersCommandListsAndCleans(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeConfig(t, cfg)
	ledger := job.LedgerFromConfig(cfg, nil)
	host, _ := os.Hostname()

	dead := filepath.Join(cfg.Paths.InputDir, "dead.mov")
	live := filepath.Join(cfg.Paths.InputDir, "live.mov")
	for path, pid := range map[string]int{dead: 0x3fffffff, live: os.Getpid()} {
		raw, err := json.Marshal(claim.Marker{Token: filepath.Base(path), PID: pid, Host: host, CreatedAt: time.Now().UTC()})
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(ledger.MarkerPath(path), raw, 0o644); err != nil {
			t.Fatalf("write marker: %v", err)
		}
	}

	out, err := runCLI(t, configPath, "markers")
	if err != nil {
		t.Fatalf("markers: %v", err)
	}
	for _, want := range []string{"dead.mov", "live.mov", "Stale (Owner Gone)", "Live"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in markers output:\n%s", want, out)
		}
	}

	out, err = runCLI(t, configPath, "markers", "--clean")
	if err != nil {
		t.Fatalf("markers --clean: %v", err)
	}
	if !strings.Contains(out, "dead.mov") || strings.Contains(out, "live.mov") {
		t.Fatalf("expected only the dead marker removed, got %q", out)
	}
	if _, err := os.Stat(ledger.MarkerPath(dead)); !os.IsNotExist(err) {
		t.Fatalf("expected dead marker removed, stat err=%v", err)
	}
	if _, err := os.Stat(ledger.MarkerPath(live)); err != nil {
		t.Fatalf("expected live marker kept: %v", err)
	}
}

func TestCheckCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegStub(0))
	configPath := writeConfig(t, cfg)

	out, err := runCLI(t, configPath, "check")
	if err != nil {
		t.Fatalf("check: %v (output %q)", err, out)
	}
	for _, want := range []string{"Input directory", "FFmpeg", "version 6.1-stub"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in check output:\n%s", want, out)
		}
	}

	broken := testsupport.NewConfig(t)
	broken.Encoder.FFmpegBinary = filepath.Join(t.TempDir(), "missing-ffmpeg")
	out, err = runCLI(t, writeConfig(t, broken), "check")
	if err == nil {
		t.Fatalf("expected check failure, output %q", out)
	}
	if !strings.Contains(out, "[ERROR]") {
		t.Fatalf("expected error line, got %q", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	target := filepath.Join(t.TempDir(), "reframe", "config.toml")
	out, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected target path in output, got %q", out)
	}
	if _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}
	if _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	cfg := testsupport.NewConfig(t)
	out, err = runCLI(t, writeConfig(t, cfg), "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[paths]") || !strings.Contains(out, cfg.Paths.InputDir) {
		t.Fatalf("unexpected config show output:\n%s", out)
	}
}

func TestLogsCommandShowsFFmpegLog(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegStub(0))
	configPath := writeConfig(t, cfg)
	src := filepath.Join(cfg.Paths.InputDir, "talk.mp4")
	testsupport.WriteFile(t, src, 512)

	if out, err := runCLI(t, configPath, "convert", src); err != nil {
		t.Fatalf("convert: %v (%q)", err, out)
	}
	out, err := runCLI(t, configPath, "logs", "--ffmpeg", src, "-n", "5")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "No log at") {
		t.Fatalf("expected ffmpeg log content, got %q", out)
	}

	out, err = runCLI(t, configPath, "logs")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if !strings.Contains(out, "No log at") {
		t.Fatalf("expected missing run log notice, got %q", out)
	}
}
