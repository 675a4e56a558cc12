package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWatch()
	c.normalizeClaim()
	c.normalizeOutput()
	if err := c.normalizeLogo(); err != nil {
		return err
	}
	c.normalizeEncoder()
	c.normalizeNotifications()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("REFRAME_INPUT_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.InputDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("REFRAME_OUTPUT_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.OutputDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}

	var err error
	if c.Paths.InputDir, err = expandPath(strings.TrimSpace(c.Paths.InputDir)); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWatch() {
	c.Watch.Mode = strings.ToLower(strings.TrimSpace(c.Watch.Mode))
	if c.Watch.Mode == "" {
		c.Watch.Mode = defaultWatchMode
	}
	if c.Watch.PollInterval <= 0 {
		c.Watch.PollInterval = defaultPollInterval
	}
	if c.Watch.DrainTimeout < 0 {
		c.Watch.DrainTimeout = 0
	}

	exts := make([]string, 0, len(c.Watch.Extensions))
	seen := make(map[string]struct{}, len(c.Watch.Extensions))
	for _, ext := range c.Watch.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, DefaultExtensions...)
	}
	c.Watch.Extensions = exts
}

func (c *Config) normalizeClaim() {
	c.Claim.MarkerSuffix = strings.TrimSpace(c.Claim.MarkerSuffix)
	if c.Claim.MarkerSuffix == "" {
		c.Claim.MarkerSuffix = defaultMarkerSuffix
	}
	if !strings.HasPrefix(c.Claim.MarkerSuffix, ".") {
		c.Claim.MarkerSuffix = "." + c.Claim.MarkerSuffix
	}
	if c.Claim.StaleAfter < 0 {
		c.Claim.StaleAfter = 0
	}
}

func (c *Config) normalizeOutput() {
	c.Output.Suffix = strings.TrimSpace(c.Output.Suffix)
	c.Output.Container = strings.ToLower(strings.TrimSpace(c.Output.Container))
	if c.Output.Container == "" {
		c.Output.Container = defaultOutputContainer
	}
	if !strings.HasPrefix(c.Output.Container, ".") {
		c.Output.Container = "." + c.Output.Container
	}
	if c.Output.ForegroundHeight <= 0 {
		c.Output.ForegroundHeight = c.Output.Width
	}
}

func (c *Config) normalizeLogo() error {
	c.Logo.File = strings.TrimSpace(c.Logo.File)
	if c.Logo.File == "" || !strings.HasPrefix(c.Logo.File, "~") {
		return nil
	}
	var err error
	if c.Logo.File, err = expandPath(c.Logo.File); err != nil {
		return fmt.Errorf("logo.file: %w", err)
	}
	return nil
}

func (c *Config) normalizeEncoder() {
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	if c.Encoder.FFmpegBinary == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encoder.VideoCodec = strings.TrimSpace(c.Encoder.VideoCodec)
	c.Encoder.Preset = strings.TrimSpace(c.Encoder.Preset)
	c.Encoder.PixelFormat = strings.TrimSpace(c.Encoder.PixelFormat)
	c.Encoder.AudioCodec = strings.TrimSpace(c.Encoder.AudioCodec)
	c.Encoder.AudioBitrate = strings.TrimSpace(c.Encoder.AudioBitrate)
	c.Encoder.Blur = strings.TrimSpace(c.Encoder.Blur)
	if c.Encoder.KillGrace < 0 {
		c.Encoder.KillGrace = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("REFRAME_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = defaultLogDir
	}
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}
