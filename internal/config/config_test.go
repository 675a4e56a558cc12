package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reframe/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	chdir(t, t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantInput := filepath.Join(tempHome, "Videos", "horizontal")
	if cfg.Paths.InputDir != wantInput {
		t.Fatalf("unexpected input dir: got %q want %q", cfg.Paths.InputDir, wantInput)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "reframe") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Claim.MarkerSuffix != ".processing" {
		t.Fatalf("unexpected marker suffix: %q", cfg.Claim.MarkerSuffix)
	}
	if cfg.Output.Width != 1080 || cfg.Output.Height != 1920 {
		t.Fatalf("unexpected geometry: %dx%d", cfg.Output.Width, cfg.Output.Height)
	}
	if cfg.Logo.Enabled {
		t.Fatal("expected logo disabled by default")
	}
	if cfg.ReadinessInterval() != time.Second {
		t.Fatalf("unexpected readiness interval: %s", cfg.ReadinessInterval())
	}
	if cfg.ReadinessTimeout() != 30*time.Second {
		t.Fatalf("unexpected readiness timeout: %s", cfg.ReadinessTimeout())
	}
	if len(cfg.Watch.Extensions) != len(config.DefaultExtensions) {
		t.Fatalf("unexpected extensions: %v", cfg.Watch.Extensions)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.InputDir, cfg.Paths.OutputDir, cfg.Paths.StateDir, cfg.Logging.Dir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "reframe.toml")

	type payload struct {
		Paths struct {
			InputDir  string `toml:"input_dir"`
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Watch struct {
			Extensions []string `toml:"extensions"`
		} `toml:"watch"`
		Retry struct {
			MaxAttempts int `toml:"max_attempts"`
		} `toml:"retry"`
	}
	custom := payload{}
	custom.Paths.InputDir = filepath.Join(tempDir, "in")
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Watch.Extensions = []string{"MP4", ".Mov", "mp4", " "}
	custom.Retry.MaxAttempts = 0

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.InputDir != custom.Paths.InputDir {
		t.Fatalf("unexpected input dir: %q", cfg.Paths.InputDir)
	}
	if got := strings.Join(cfg.Watch.Extensions, ","); got != ".mp4,.mov" {
		t.Fatalf("expected normalized extensions, got %q", got)
	}
	if cfg.Retry.MaxAttempts != 0 {
		t.Fatalf("expected unbounded retries to survive normalization, got %d", cfg.Retry.MaxAttempts)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "reframe.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\ninput_directory = \"/tmp\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestEnvOverridesDirectories(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("REFRAME_INPUT_DIR", filepath.Join(tempDir, "drop"))
	t.Setenv("REFRAME_NTFY_TOPIC", " https://ntfy.example/reframe ")

	cfg, _, _, err := config.Load(filepath.Join(tempDir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.InputDir != filepath.Join(tempDir, "drop") {
		t.Fatalf("expected env input dir, got %q", cfg.Paths.InputDir)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/reframe" {
		t.Fatalf("expected trimmed ntfy topic, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "odd width",
			mutate: func(c *config.Config) { c.Output.Width = 1081 },
			want:   "even",
		},
		{
			name:   "foreground taller than frame",
			mutate: func(c *config.Config) { c.Output.ForegroundHeight = 2000 },
			want:   "foreground_height",
		},
		{
			name:   "output dir equals input dir",
			mutate: func(c *config.Config) { c.Paths.OutputDir = "/srv/in/" },
			want:   "paths.output_dir",
		},
		{
			name:   "unknown watch mode",
			mutate: func(c *config.Config) { c.Watch.Mode = "kqueue" },
			want:   "watch.mode",
		},
		{
			name:   "negative attempts",
			mutate: func(c *config.Config) { c.Retry.MaxAttempts = -1 },
			want:   "retry.max_attempts",
		},
		{
			name:   "multiplier below one",
			mutate: func(c *config.Config) { c.Retry.Multiplier = 0.5 },
			want:   "retry.multiplier",
		},
		{
			name: "timeout shorter than interval",
			mutate: func(c *config.Config) {
				c.Readiness.IntervalMillis = 5000
				c.Readiness.Timeout = 2
			},
			want: "readiness.timeout",
		},
		{
			name: "logo without file",
			mutate: func(c *config.Config) {
				c.Logo.Enabled = true
				c.Logo.File = ""
			},
			want: "logo.file",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.InputDir = "/srv/in"
			cfg.Paths.OutputDir = "/srv/out"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLogoPathResolvesAgainstInputDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.InputDir = "/srv/in"
	if cfg.LogoPath() != "" {
		t.Fatalf("expected empty logo path when disabled, got %q", cfg.LogoPath())
	}
	cfg.Logo.Enabled = true
	cfg.Logo.File = "brand.png"
	if got := cfg.LogoPath(); got != filepath.Join("/srv/in", "brand.png") {
		t.Fatalf("unexpected relative logo path: %q", got)
	}
	cfg.Logo.File = "/opt/brand.png"
	if got := cfg.LogoPath(); got != "/opt/brand.png" {
		t.Fatalf("unexpected absolute logo path: %q", got)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	path := filepath.Join(tempDir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Encoder.VideoCodec != "libx264" {
		t.Fatalf("unexpected codec from sample: %q", cfg.Encoder.VideoCodec)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
