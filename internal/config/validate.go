package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateReadiness(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateLogo(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.InputDir == "" {
		return errors.New("paths.input_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if filepath.Clean(c.Paths.InputDir) == filepath.Clean(c.Paths.OutputDir) {
		return errors.New("paths.output_dir must differ from paths.input_dir; outputs would be picked up as new sources")
	}
	return nil
}

func (c *Config) validateWatch() error {
	switch c.Watch.Mode {
	case "notify", "poll":
	default:
		return fmt.Errorf("watch.mode must be \"notify\" or \"poll\", got %q", c.Watch.Mode)
	}
	for _, ext := range c.Watch.Extensions {
		if ext == c.Claim.MarkerSuffix {
			return fmt.Errorf("watch.extensions must not include the claim marker suffix %q", ext)
		}
	}
	return nil
}

func (c *Config) validateReadiness() error {
	if err := ensurePositiveMap(map[string]int{
		"readiness.interval_ms": c.Readiness.IntervalMillis,
		"readiness.timeout":     c.Readiness.Timeout,
	}); err != nil {
		return err
	}
	if c.ReadinessInterval() >= c.ReadinessTimeout() {
		return errors.New("readiness.timeout must be greater than readiness.interval_ms")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if err := ensurePositiveMap(map[string]int{
		"output.width":             c.Output.Width,
		"output.height":            c.Output.Height,
		"output.foreground_height": c.Output.ForegroundHeight,
	}); err != nil {
		return err
	}
	if c.Output.Width%2 != 0 || c.Output.Height%2 != 0 || c.Output.ForegroundHeight%2 != 0 {
		return errors.New("output dimensions must be even for yuv420p encoding")
	}
	if c.Output.ForegroundHeight > c.Output.Height {
		return errors.New("output.foreground_height must not exceed output.height")
	}
	return nil
}

func (c *Config) validateLogo() error {
	if !c.Logo.Enabled {
		return nil
	}
	if c.Logo.File == "" {
		return errors.New("logo.file must be set when logo.enabled is true")
	}
	if c.Logo.Width < 0 || c.Logo.Width > c.Output.Width {
		return errors.New("logo.width must be between 0 and output.width")
	}
	if c.Logo.Gap < 0 {
		return errors.New("logo.gap must be >= 0")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	required := map[string]string{
		"encoder.video_codec":   c.Encoder.VideoCodec,
		"encoder.pixel_format":  c.Encoder.PixelFormat,
		"encoder.audio_codec":   c.Encoder.AudioCodec,
		"encoder.audio_bitrate": c.Encoder.AudioBitrate,
		"encoder.blur":          c.Encoder.Blur,
	}
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if c.Encoder.CRF < 0 || c.Encoder.CRF > 63 {
		return errors.New("encoder.crf must be between 0 and 63")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 0 {
		return errors.New("retry.max_attempts must be >= 0 (0 retries forever)")
	}
	if c.Retry.InitialBackoff <= 0 {
		return errors.New("retry.initial_backoff must be positive")
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return errors.New("retry.max_backoff must be >= retry.initial_backoff")
	}
	if c.Retry.Multiplier < 1 {
		return errors.New("retry.multiplier must be >= 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
