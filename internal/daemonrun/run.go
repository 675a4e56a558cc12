package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"reframe/internal/config"
	"reframe/internal/daemon"
	"reframe/internal/deps"
	"reframe/internal/history"
	"reframe/internal/job"
	"reframe/internal/logging"
	"reframe/internal/notifications"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the reframe daemon and blocks until SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	logPath := RunLogPath(cfg, time.Now())
	logger, err := logging.New(logging.Options{
		Level:            firstNonEmpty(opts.LogLevel, cfg.Logging.Level),
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldRunID, runID))

	if err := ensureCurrentLogPointer(cfg.Logging.Dir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update reframe.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Logging.Dir, Pattern: "reframe-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: job.ToolLogDir(cfg), Pattern: "*.ffmpeg.log"},
	)
	logDependencySnapshot(signalCtx, logger, cfg)

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return err
	}
	defer store.Close()

	d, err := daemon.New(cfg, store, logger, notifications.NewService(cfg))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration, directory permissions, and ffmpeg"),
		)
		return err
	}
	logger.Info("reframe daemon shutting down")
	return nil
}

// RunLogPath names the per-run log file.
func RunLogPath(cfg *config.Config, now time.Time) string {
	return filepath.Join(cfg.Logging.Dir, fmt.Sprintf("reframe-%s.log", now.UTC().Format("20060102T150405.000Z")))
}

// ensureCurrentLogPointer points <logDir>/reframe.log at target.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "reframe.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	ffmpeg := deps.CheckFFmpeg(ctx, cfg.FFmpegBinary())
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", ffmpeg.Available),
		logging.String("ffmpeg_binary", ffmpeg.Command),
		logging.String("ffmpeg_version", ffmpeg.Detail),
		logging.Bool("logo_enabled", cfg.Logo.Enabled),
		logging.String("logo_path", cfg.LogoPath()),
		logging.String("watch_mode", cfg.Watch.Mode),
		logging.Int("max_attempts", cfg.Retry.MaxAttempts),
		logging.Bool("metrics_enabled", cfg.Metrics.Bind != ""),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
