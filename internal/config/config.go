package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the watched, output, and state directories.
type Paths struct {
	InputDir  string `toml:"input_dir"`
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`
}

// Watch contains configuration for directory event delivery.
type Watch struct {
	Mode         string   `toml:"mode"`
	PollInterval int      `toml:"poll_interval"`
	Extensions   []string `toml:"extensions"`
	ScanExisting bool     `toml:"scan_existing"`
	DrainTimeout int      `toml:"drain_timeout"`
}

// Readiness contains the size-stabilization check settings.
type Readiness struct {
	IntervalMillis int `toml:"interval_ms"`
	Timeout        int `toml:"timeout"`
}

// Claim contains configuration for the marker-file claim ledger.
type Claim struct {
	MarkerSuffix string `toml:"marker_suffix"`
	// StaleAfter is the marker age in seconds after which a claim owned by an
	// unknown process may be reclaimed. Zero disables age-based reclaim.
	StaleAfter int `toml:"stale_after"`
}

// Output contains the target geometry and naming of converted files.
type Output struct {
	Width            int    `toml:"width"`
	Height           int    `toml:"height"`
	ForegroundHeight int    `toml:"foreground_height"`
	Suffix           string `toml:"suffix"`
	Container        string `toml:"container"`
}

// Logo contains the optional watermark overlay settings.
type Logo struct {
	Enabled bool   `toml:"enabled"`
	File    string `toml:"file"`
	Width   int    `toml:"width"`
	Gap     int    `toml:"gap"`
}

// Encoder contains the ffmpeg binary and codec parameters.
type Encoder struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
	VideoCodec   string `toml:"video_codec"`
	Preset       string `toml:"preset"`
	CRF          int    `toml:"crf"`
	PixelFormat  string `toml:"pixel_format"`
	FastStart    bool   `toml:"faststart"`
	AudioCodec   string `toml:"audio_codec"`
	AudioBitrate string `toml:"audio_bitrate"`
	Blur         string `toml:"blur"`
	KillGrace    int    `toml:"kill_grace"`
}

// Retry contains the bounded retry policy for failed conversions.
type Retry struct {
	// MaxAttempts bounds conversion attempts per detected file. Zero retries forever.
	MaxAttempts    int     `toml:"max_attempts"`
	InitialBackoff int     `toml:"initial_backoff"`
	MaxBackoff     int     `toml:"max_backoff"`
	Multiplier     float64 `toml:"multiplier"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	Dir           string `toml:"dir"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	OnSuccess      bool   `toml:"on_success"`
	OnFailure      bool   `toml:"on_failure"`
}

// Metrics contains the Prometheus exporter settings.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Config encapsulates all configuration values for reframe.
//
// Configuration sections by subsystem:
//   - Paths: input, output, and state directories
//   - Watch: event source selection and extension allow-list
//   - Readiness: size-stabilization check timing
//   - Claim: marker suffix and stale reclaim window
//   - Output, Logo, Encoder: the ffmpeg composition and codec profile
//   - Retry: bounded retry and backoff for failed conversions
//   - Logging: log format, level, directory, and retention
//   - Notifications: ntfy push notification settings
//   - Metrics: Prometheus exporter bind address
type Config struct {
	Paths         Paths         `toml:"paths"`
	Watch         Watch         `toml:"watch"`
	Readiness     Readiness     `toml:"readiness"`
	Claim         Claim         `toml:"claim"`
	Output        Output        `toml:"output"`
	Logo          Logo          `toml:"logo"`
	Encoder       Encoder       `toml:"encoder"`
	Retry         Retry         `toml:"retry"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reframe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The input directory is created too so a fresh install can be watched
// before anything has been dropped into it.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.InputDir, c.Paths.OutputDir, c.Paths.StateDir, c.Logging.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for conversions.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Encoder.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// LogoPath returns the absolute logo path when the overlay is enabled.
// A relative logo file is resolved against the input directory.
func (c *Config) LogoPath() string {
	if !c.Logo.Enabled {
		return ""
	}
	file := strings.TrimSpace(c.Logo.File)
	if file == "" {
		return ""
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(c.Paths.InputDir, file)
}

// HistoryPath returns the SQLite database path for conversion history.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the daemon single-instance lock path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "reframe.lock")
}

// ReadinessInterval returns the delay between size samples.
func (c *Config) ReadinessInterval() time.Duration {
	return time.Duration(c.Readiness.IntervalMillis) * time.Millisecond
}

// ReadinessTimeout returns the maximum time a file may take to settle.
func (c *Config) ReadinessTimeout() time.Duration {
	return seconds(c.Readiness.Timeout)
}

// StaleAfter returns the marker age after which a claim is reclaimable.
func (c *Config) StaleAfter() time.Duration {
	return seconds(c.Claim.StaleAfter)
}

// PollInterval returns the directory listing interval for poll mode.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Watch.PollInterval)
}

// DrainTimeout returns how long shutdown waits for in-flight conversions.
func (c *Config) DrainTimeout() time.Duration {
	return seconds(c.Watch.DrainTimeout)
}

// KillGrace returns how long a canceled ffmpeg gets between SIGTERM and SIGKILL.
func (c *Config) KillGrace() time.Duration {
	return seconds(c.Encoder.KillGrace)
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Marshal renders the effective configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
