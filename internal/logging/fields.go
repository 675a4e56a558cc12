package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (e.g. "conversion_failed").
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldSource is the input video path.
	FieldSource = "source"
	// FieldOutput is the converted video path.
	FieldOutput = "output"
	// FieldAttempt is the 1-based conversion attempt number.
	FieldAttempt = "attempt"
	// FieldClaimToken identifies the marker owned by one attempt.
	FieldClaimToken = "claim_token"
	// FieldSize is a file size in bytes; the console renders it humanized.
	FieldSize = "size"
	// FieldRunID identifies one daemon process run.
	FieldRunID = "run_id"
)
