package job

import (
	"log/slog"
	"path/filepath"
	"strings"

	"reframe/internal/claim"
	"reframe/internal/config"
	"reframe/internal/notifications"
	"reframe/internal/readiness"
	"reframe/internal/transcode"
)

// ToolLogDir is where per-output ffmpeg logs are written.
func ToolLogDir(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Logging.Dir) == "" {
		return ""
	}
	return filepath.Join(cfg.Logging.Dir, "tool")
}

// LedgerFromConfig builds the claim ledger for cfg.
func LedgerFromConfig(cfg *config.Config, logger *slog.Logger) *claim.Ledger {
	return claim.NewLedger(claim.Options{
		OutputDir:       cfg.Paths.OutputDir,
		OutputSuffix:    cfg.Output.Suffix,
		OutputContainer: cfg.Output.Container,
		MarkerSuffix:    cfg.Claim.MarkerSuffix,
		StaleAfter:      cfg.StaleAfter(),
	}, logger)
}

// NewRunnerFromConfig wires a Runner with the production checker, ledger, and
// ffmpeg transcoder. hist and notifier may be nil.
func NewRunnerFromConfig(cfg *config.Config, hist History, notifier notifications.Service, logger *slog.Logger) (*Runner, error) {
	deps := Deps{
		Checker: readiness.New(cfg.ReadinessInterval(), cfg.ReadinessTimeout(), readiness.WithLogger(logger)),
		Ledger:  LedgerFromConfig(cfg, logger),
		Planner: transcode.ProfileFromConfig(cfg),
		Transcoder: transcode.NewFFmpeg(cfg.FFmpegBinary(), cfg.KillGrace(), logger,
			transcode.WithToolLogDir(ToolLogDir(cfg))),
		History:  hist,
		Notifier: notifier,
		Retry:    RetryPolicyFromConfig(cfg),
		Logger:   logger,
	}
	return NewRunner(deps)
}
