package job

import (
	"context"
	"math"
	"time"

	"reframe/internal/config"
)

// RetryPolicy bounds and spaces conversion attempts for one detected file.
type RetryPolicy struct {
	// MaxAttempts is the number of transcoder invocations before the file is
	// poisoned. Zero retries forever.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// RetryPolicyFromConfig converts the [retry] section.
func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Retry.InitialBackoff) * time.Second,
		MaxBackoff:     time.Duration(cfg.Retry.MaxBackoff) * time.Second,
		Multiplier:     cfg.Retry.Multiplier,
	}
}

// Exhausted reports whether failures has used up the budget.
func (p RetryPolicy) Exhausted(failures int) bool {
	return p.MaxAttempts > 0 && failures >= p.MaxAttempts
}

// Backoff returns the wait before the attempt that follows the given number
// of consecutive failures (1-based).
func (p RetryPolicy) Backoff(failures int) time.Duration {
	if p.InitialBackoff <= 0 || failures <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(p.InitialBackoff) * math.Pow(mult, float64(failures-1))
	if p.MaxBackoff > 0 && delay > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
