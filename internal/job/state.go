package job

import "time"

// State is a node of the conversion state machine.
type State string

const (
	StateDetected        State = "detected"
	StateClaiming        State = "claiming"
	StateConverting      State = "converting"
	StateSucceeded       State = "succeeded"
	StateFailedRetryable State = "failed_retryable"
	StateFailedTerminal  State = "failed_terminal"
	StatePoisoned        State = "poisoned"
)

// Reasons attached to final outcomes.
const (
	ReasonConverted        = "converted"
	ReasonAlreadyDone      = "already_done"
	ReasonAlreadyClaimed   = "already_claimed"
	ReasonClaimFailed      = "claim_failed"
	ReasonReadinessTimeout = "readiness_timeout"
	ReasonReadinessFailed  = "readiness_failed"
	ReasonNotRegular       = "not_regular"
	ReasonPreviouslyFailed = "poisoned"
	ReasonRetriesExhausted = "retries_exhausted"
	ReasonCanceled         = "canceled"
	ReasonInternalError    = "internal_error"
)

// Outcome summarizes one Handle call.
type Outcome struct {
	Source   string
	Output   string
	State    State
	Reason   string
	Attempts int
	Duration time.Duration
	Err      error
}

// Converted reports whether this call produced the output.
func (o Outcome) Converted() bool {
	return o.State == StateSucceeded
}

// NoOp reports whether the file was intentionally left alone (already done,
// owned by another attempt, or previously poisoned).
func (o Outcome) NoOp() bool {
	switch o.Reason {
	case ReasonAlreadyDone, ReasonAlreadyClaimed, ReasonPreviouslyFailed:
		return true
	default:
		return false
	}
}
