package history

import (
	"fmt"
	"strings"
	"time"
)

// Status is the last known state of a source video.
type Status string

const (
	StatusConverting Status = "converting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusPoisoned   Status = "poisoned"
	StatusSkipped    Status = "skipped"
)

var allStatuses = []Status{
	StatusConverting,
	StatusSucceeded,
	StatusFailed,
	StatusPoisoned,
	StatusSkipped,
}

// AllStatuses returns every known status in display order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus maps user input onto a Status.
func ParseStatus(value string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// IsTerminal reports whether no further automatic attempt follows.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusPoisoned
}

// Record is one row of conversion history.
type Record struct {
	SourcePath  string
	OutputPath  string
	Status      Status
	Attempts    int
	LastError   string
	Reason      string
	ClaimToken  string
	Duration    time.Duration
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// Result is the outcome written by Finish.
type Result struct {
	Status   Status
	Error    string
	Reason   string
	Duration time.Duration
}
