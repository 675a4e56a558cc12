package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reframe/internal/claim"
	"reframe/internal/history"
	"reframe/internal/logging"
	"reframe/internal/metrics"
	"reframe/internal/notifications"
	"reframe/internal/readiness"
	"reframe/internal/transcode"
)

// Checker waits until a file has stopped growing.
type Checker interface {
	Wait(ctx context.Context, path string) (readiness.Sample, error)
}

// Ledger grants exclusive ownership of a source.
type Ledger interface {
	TryClaim(source string) (*claim.Claim, error)
	OutputPath(source string) string
}

// Planner builds the ffmpeg job for a claimed source.
type Planner interface {
	Job(source, output, attempt string) transcode.Job
}

// Transcoder runs one conversion job to completion.
type Transcoder interface {
	Run(ctx context.Context, job transcode.Job) error
}

// History records attempts and answers whether a source is poisoned.
type History interface {
	IsPoisoned(ctx context.Context, source string) (bool, error)
	StartAttempt(ctx context.Context, source, output, claimToken string) (int, error)
	Finish(ctx context.Context, source string, result history.Result) error
	RecordSkip(ctx context.Context, source, reason string) error
}

// Deps wires a Runner. History and Notifier are optional.
type Deps struct {
	Checker    Checker
	Ledger     Ledger
	Planner    Planner
	Transcoder Transcoder
	History    History
	Notifier   notifications.Service
	Retry      RetryPolicy
	Logger     *slog.Logger
}

// Runner drives single files through the conversion state machine.
type Runner struct {
	checker    Checker
	ledger     Ledger
	planner    Planner
	transcoder Transcoder
	history    History
	notifier   notifications.Service
	retry      RetryPolicy
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error
}

// NewRunner constructs a Runner.
func NewRunner(deps Deps) (*Runner, error) {
	switch {
	case deps.Checker == nil:
		return nil, errors.New("job runner: checker required")
	case deps.Ledger == nil:
		return nil, errors.New("job runner: ledger required")
	case deps.Planner == nil:
		return nil, errors.New("job runner: planner required")
	case deps.Transcoder == nil:
		return nil, errors.New("job runner: transcoder required")
	}
	hist := deps.History
	if hist == nil {
		hist = noopHistory{}
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	return &Runner{
		checker:    deps.Checker,
		ledger:     deps.Ledger,
		planner:    deps.Planner,
		transcoder: deps.Transcoder,
		history:    hist,
		notifier:   notifier,
		retry:      deps.Retry,
		logger:     logging.NewComponentLogger(deps.Logger, "runner"),
		sleep:      sleepContext,
	}, nil
}

// step is the result of one claim-and-convert round.
type step struct {
	state  State
	reason string
	err    error
}

// Handle runs source to a final state. It never panics and never returns an
// error; the Outcome carries what happened.
func (r *Runner) Handle(ctx context.Context, source string) (out Outcome) {
	start := time.Now()
	logger := logging.ForSource(r.logger, source)
	out = Outcome{
		Source: source,
		Output: r.ledger.OutputPath(source),
		State:  StateDetected,
	}

	metrics.JobsInFlight.Inc()
	defer func() {
		metrics.JobsInFlight.Dec()
		if recovered := recover(); recovered != nil {
			out.State = StateFailedTerminal
			out.Reason = ReasonInternalError
			out.Err = fmt.Errorf("panic: %v", recovered)
		}
		out.Duration = time.Since(start)
		r.report(ctx, logger, out)
	}()

	failures := 0
	for {
		out.State = StateClaiming
		res := r.round(ctx, logger, source, &out)
		out.State, out.Reason = res.state, res.reason
		out.Err = res.err
		if res.state != StateFailedRetryable {
			return out
		}

		failures++
		if r.retry.Exhausted(failures) {
			out.State = StatePoisoned
			out.Reason = ReasonRetriesExhausted
			r.poison(ctx, logger, source, failures, res.err)
			return out
		}

		backoff := r.retry.Backoff(failures)
		logging.WarnWithContext(logger, "conversion failed; retrying", "conversion_retry",
			logging.Int(logging.FieldAttempt, out.Attempts),
			logging.Duration("backoff", backoff),
			logging.Error(res.err),
			logging.String(logging.FieldErrorHint, "inspect the ffmpeg error; a corrupt source will eventually be poisoned"),
			logging.String(logging.FieldImpact, "conversion delayed"),
		)
		metrics.RetriesTotal.Inc()
		if err := r.sleep(ctx, backoff); err != nil {
			out.State = StateFailedTerminal
			out.Reason = ReasonCanceled
			return out
		}
	}
}

// round performs readiness, claim, and conversion once.
func (r *Runner) round(ctx context.Context, logger *slog.Logger, source string, out *Outcome) step {
	bg := context.WithoutCancel(ctx)

	sample, err := r.checker.Wait(ctx, source)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return step{state: StateFailedTerminal, reason: ReasonCanceled}
		case errors.Is(err, readiness.ErrTimeout):
			metrics.ReadinessTimeoutsTotal.Inc()
			r.recordSkip(bg, logger, source, ReasonReadinessTimeout)
			return step{state: StateFailedTerminal, reason: ReasonReadinessTimeout, err: err}
		case errors.Is(err, readiness.ErrNotRegular):
			return step{state: StateFailedTerminal, reason: ReasonNotRegular, err: err}
		default:
			r.recordSkip(bg, logger, source, ReasonReadinessFailed)
			return step{state: StateFailedTerminal, reason: ReasonReadinessFailed, err: err}
		}
	}
	logger.Debug("file ready",
		logging.Int64(logging.FieldSize, sample.Size),
		logging.Int("samples", sample.Samples),
		logging.Duration("waited", sample.Elapsed),
	)

	poisoned, err := r.history.IsPoisoned(bg, source)
	if err != nil {
		logging.WarnWithContext(logger, "history lookup failed; continuing", "history_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the history database in state_dir"),
			logging.String(logging.FieldImpact, "a poisoned file may be retried"),
		)
	}
	if poisoned {
		return step{state: StateFailedTerminal, reason: ReasonPreviouslyFailed}
	}

	c, err := r.ledger.TryClaim(source)
	switch {
	case err == nil:
	case errors.Is(err, claim.ErrAlreadyDone):
		return step{state: StateFailedTerminal, reason: ReasonAlreadyDone}
	case errors.Is(err, claim.ErrAlreadyClaimed):
		return step{state: StateFailedTerminal, reason: ReasonAlreadyClaimed}
	default:
		r.recordSkip(bg, logger, source, ReasonClaimFailed)
		return step{state: StateFailedTerminal, reason: ReasonClaimFailed, err: err}
	}
	defer func() {
		if err := c.Release(); err != nil {
			logging.WarnWithContext(logger, "claim release failed", "marker_release_failed",
				logging.String(logging.FieldClaimToken, c.Token),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the marker manually or run `reframe markers --clean`"),
				logging.String(logging.FieldImpact, "file looks claimed until the marker goes stale"),
			)
		}
	}()

	return r.convert(ctx, logger, c, out)
}

func (r *Runner) convert(ctx context.Context, logger *slog.Logger, c *claim.Claim, out *Outcome) step {
	bg := context.WithoutCancel(ctx)
	out.State = StateConverting
	out.Attempts++
	out.Output = c.Output

	lifetime, err := r.history.StartAttempt(bg, c.Source, c.Output, c.Token)
	if err != nil {
		logging.WarnWithContext(logger, "history start failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "attempt missing from history"),
		)
	}

	job := r.planner.Job(c.Source, c.Output, c.Token)
	logger.Info("conversion started",
		logging.String(logging.FieldOutput, c.Output),
		logging.Int(logging.FieldAttempt, out.Attempts),
		logging.Int("lifetime_attempts", lifetime),
		logging.String(logging.FieldClaimToken, c.Token),
	)

	started := time.Now()
	runErr := r.transcoder.Run(ctx, job)
	elapsed := time.Since(started)

	var exitErr *transcode.ExitError
	switch {
	case runErr == nil:
		metrics.TranscodeRunsTotal.WithLabelValues("success").Inc()
		metrics.ConversionDuration.Observe(elapsed.Seconds())
		r.finish(bg, logger, c.Source, history.Result{Status: history.StatusSucceeded, Reason: ReasonConverted, Duration: elapsed})
		if err := r.notifier.NotifyConversionCompleted(bg, c.Source, c.Output, out.Attempts, elapsed); err != nil {
			logger.Debug("success notification failed", logging.Error(err))
		}
		return step{state: StateSucceeded, reason: ReasonConverted}
	case errors.Is(runErr, transcode.ErrOutputExists):
		metrics.TranscodeRunsTotal.WithLabelValues("output_exists").Inc()
		r.finish(bg, logger, c.Source, history.Result{Status: history.StatusSucceeded, Reason: ReasonAlreadyDone, Duration: elapsed})
		return step{state: StateFailedTerminal, reason: ReasonAlreadyDone}
	case ctx.Err() != nil:
		metrics.TranscodeRunsTotal.WithLabelValues("canceled").Inc()
		r.finish(bg, logger, c.Source, history.Result{Status: history.StatusFailed, Error: history.DaemonStopReason, Reason: ReasonCanceled, Duration: elapsed})
		return step{state: StateFailedTerminal, reason: ReasonCanceled, err: runErr}
	case errors.As(runErr, &exitErr):
		metrics.TranscodeRunsTotal.WithLabelValues("exit_error").Inc()
	case errors.Is(runErr, transcode.ErrLaunch):
		metrics.TranscodeRunsTotal.WithLabelValues("launch_error").Inc()
	default:
		metrics.TranscodeRunsTotal.WithLabelValues("error").Inc()
	}
	r.finish(bg, logger, c.Source, history.Result{Status: history.StatusFailed, Error: runErr.Error(), Duration: elapsed})
	return step{state: StateFailedRetryable, err: runErr}
}

func (r *Runner) poison(ctx context.Context, logger *slog.Logger, source string, failures int, cause error) {
	bg := context.WithoutCancel(ctx)
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	r.finish(bg, logger, source, history.Result{Status: history.StatusPoisoned, Error: msg, Reason: ReasonRetriesExhausted})
	if err := r.notifier.NotifyConversionPoisoned(bg, source, failures, cause); err != nil {
		logger.Debug("poison notification failed", logging.Error(err))
	}
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, source string, result history.Result) {
	if err := r.history.Finish(ctx, source, result); err != nil {
		logging.WarnWithContext(logger, "history update failed", "history_write_failed",
			logging.String("status", string(result.Status)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "history shows a stale status for this file"),
		)
	}
}

func (r *Runner) recordSkip(ctx context.Context, logger *slog.Logger, source, reason string) {
	if err := r.history.RecordSkip(ctx, source, reason); err != nil {
		logger.Debug("history skip not recorded", logging.Error(err))
	}
}

func (r *Runner) report(ctx context.Context, logger *slog.Logger, out Outcome) {
	metrics.OutcomesTotal.WithLabelValues(string(out.State), out.Reason).Inc()
	attrs := []logging.Attr{
		logging.String("state", string(out.State)),
		logging.String("reason", out.Reason),
		logging.Int(logging.FieldAttempt, out.Attempts),
		logging.Duration("elapsed", out.Duration),
	}
	switch {
	case out.State == StateSucceeded:
		attrs = append(attrs, logging.String(logging.FieldOutput, out.Output))
		logger.Info("conversion succeeded", logging.Args(attrs...)...)
	case out.NoOp():
		logger.Info("file skipped", logging.Args(attrs...)...)
	case out.Reason == ReasonCanceled:
		logger.Info("conversion canceled", logging.Args(attrs...)...)
	case out.State == StatePoisoned:
		attrs = append(attrs,
			logging.Error(out.Err),
			logging.String(logging.FieldErrorHint, "fix or replace the source, then run `reframe retry`"),
		)
		logging.ErrorWithContext(logger, "giving up on file after repeated failures", "conversion_poisoned", attrs...)
	default:
		attrs = append(attrs,
			logging.Error(out.Err),
			logging.String(logging.FieldErrorHint, hintFor(out.Reason)),
			logging.String(logging.FieldImpact, "file left untouched until a new event arrives"),
		)
		logging.WarnWithContext(logger, "file abandoned", "conversion_abandoned", attrs...)
	}
	if out.Reason == ReasonInternalError {
		_ = r.notifier.NotifyError(context.WithoutCancel(ctx), out.Err, out.Source)
	}
}

func hintFor(reason string) string {
	switch reason {
	case ReasonReadinessTimeout:
		return "the file kept growing past readiness.timeout; raise it for slow copies"
	case ReasonReadinessFailed:
		return "the file could not be inspected; check the input directory mount and permissions"
	case ReasonClaimFailed:
		return "check write permission on the input directory"
	case ReasonNotRegular:
		return "only regular files are converted"
	default:
		return "check logs for details"
	}
}

type noopHistory struct{}

func (noopHistory) IsPoisoned(context.Context, string) (bool, error) { return false, nil }
func (noopHistory) StartAttempt(context.Context, string, string, string) (int, error) {
	return 0, nil
}
func (noopHistory) Finish(context.Context, string, history.Result) error { return nil }
func (noopHistory) RecordSkip(context.Context, string, string) error     { return nil }
