package config

const (
	defaultConfigPath           = "~/.config/reframe/config.toml"
	defaultInputDir             = "~/Videos/horizontal"
	defaultOutputDir            = "~/Videos/vertical"
	defaultStateDir             = "~/.local/share/reframe"
	defaultLogDir               = "~/.local/share/reframe/logs"
	defaultWatchMode            = "notify"
	defaultPollInterval         = 5
	defaultDrainTimeout         = 30
	defaultReadinessIntervalMS  = 1000
	defaultReadinessTimeout     = 30
	defaultMarkerSuffix         = ".processing"
	defaultStaleAfter           = 6 * 60 * 60
	defaultOutputWidth          = 1080
	defaultOutputHeight         = 1920
	defaultForegroundHeight     = 1080
	defaultOutputSuffix         = "_vertical"
	defaultOutputContainer      = ".mp4"
	defaultLogoFile             = "logo.png"
	defaultLogoWidth            = 0
	defaultLogoGap              = 40
	defaultFFmpegBinary         = "ffmpeg"
	defaultVideoCodec           = "libx264"
	defaultPreset               = "slow"
	defaultCRF                  = 18
	defaultPixelFormat          = "yuv420p"
	defaultAudioCodec           = "aac"
	defaultAudioBitrate         = "192k"
	defaultBlur                 = "20:1"
	defaultKillGrace            = 10
	defaultRetryMaxAttempts     = 5
	defaultRetryInitialBackoff  = 3
	defaultRetryMaxBackoff      = 300
	defaultRetryMultiplier      = 2.0
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	defaultNotifyRequestTimeout = 10
)

// DefaultExtensions is the case-insensitive allow-list of input containers.
var DefaultExtensions = []string{".mp4", ".mkv", ".avi", ".mov", ".webm", ".flv", ".m4v"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	exts := make([]string, len(DefaultExtensions))
	copy(exts, DefaultExtensions)
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
		},
		Watch: Watch{
			Mode:         defaultWatchMode,
			PollInterval: defaultPollInterval,
			Extensions:   exts,
			ScanExisting: true,
			DrainTimeout: defaultDrainTimeout,
		},
		Readiness: Readiness{
			IntervalMillis: defaultReadinessIntervalMS,
			Timeout:        defaultReadinessTimeout,
		},
		Claim: Claim{
			MarkerSuffix: defaultMarkerSuffix,
			StaleAfter:   defaultStaleAfter,
		},
		Output: Output{
			Width:            defaultOutputWidth,
			Height:           defaultOutputHeight,
			ForegroundHeight: defaultForegroundHeight,
			Suffix:           defaultOutputSuffix,
			Container:        defaultOutputContainer,
		},
		Logo: Logo{
			Enabled: false,
			File:    defaultLogoFile,
			Width:   defaultLogoWidth,
			Gap:     defaultLogoGap,
		},
		Encoder: Encoder{
			FFmpegBinary: defaultFFmpegBinary,
			VideoCodec:   defaultVideoCodec,
			Preset:       defaultPreset,
			CRF:          defaultCRF,
			PixelFormat:  defaultPixelFormat,
			FastStart:    true,
			AudioCodec:   defaultAudioCodec,
			AudioBitrate: defaultAudioBitrate,
			Blur:         defaultBlur,
			KillGrace:    defaultKillGrace,
		},
		Retry: Retry{
			MaxAttempts:    defaultRetryMaxAttempts,
			InitialBackoff: defaultRetryInitialBackoff,
			MaxBackoff:     defaultRetryMaxBackoff,
			Multiplier:     defaultRetryMultiplier,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			Dir:           defaultLogDir,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			OnSuccess:      true,
			OnFailure:      true,
		},
	}
}
