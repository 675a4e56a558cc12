package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const recordColumns = "source_path, output_path, status, attempts, last_error, reason, claim_token, duration_ms, created_at, updated_at, completed_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		source      string
		output      sql.NullString
		status      string
		attempts    int
		lastError   sql.NullString
		reason      sql.NullString
		token       sql.NullString
		durationMS  int64
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
		completedAt sql.NullString
	)
	if err := scanner.Scan(&source, &output, &status, &attempts, &lastError, &reason, &token, &durationMS, &createdRaw, &updatedRaw, &completedAt); err != nil {
		return nil, err
	}
	return &Record{
		SourcePath:  source,
		OutputPath:  output.String,
		Status:      Status(status),
		Attempts:    attempts,
		LastError:   lastError.String,
		Reason:      reason.String,
		ClaimToken:  token.String,
		Duration:    time.Duration(durationMS) * time.Millisecond,
		CreatedAt:   parseTime(createdRaw),
		UpdatedAt:   parseTime(updatedRaw),
		CompletedAt: parseTime(completedAt),
	}, nil
}

// StartAttempt marks source as converting and returns its lifetime attempt
// count including this one.
func (s *Store) StartAttempt(ctx context.Context, source, output, claimToken string) (int, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())
	var attempts int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `
INSERT INTO conversions (source_path, output_path, status, attempts, claim_token, created_at, updated_at)
VALUES (?, ?, ?, 1, ?, ?, ?)
ON CONFLICT(source_path) DO UPDATE SET
    output_path  = excluded.output_path,
    status       = excluded.status,
    attempts     = conversions.attempts + 1,
    claim_token  = excluded.claim_token,
    updated_at   = excluded.updated_at,
    completed_at = NULL
RETURNING attempts`,
			source, output, StatusConverting, claimToken, now, now,
		).Scan(&attempts)
	})
	if err != nil {
		return 0, fmt.Errorf("history start %s: %w", source, err)
	}
	return attempts, nil
}

// Finish records the outcome of the latest attempt for source.
func (s *Store) Finish(ctx context.Context, source string, result Result) error {
	now := time.Now()
	var completed any
	if result.Status.IsTerminal() {
		completed = formatTime(now)
	}
	res, err := s.execWithRetry(ctx, `
UPDATE conversions
SET status = ?, last_error = ?, reason = ?, duration_ms = ?, updated_at = ?, completed_at = ?
WHERE source_path = ?`,
		result.Status, nullable(result.Error), nullable(result.Reason), result.Duration.Milliseconds(), formatTime(now), completed, source,
	)
	if err != nil {
		return fmt.Errorf("history finish %s: %w", source, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("history finish %s: no attempt recorded", source)
	}
	return nil
}

// RecordSkip notes that source was abandoned before conversion started. A
// succeeded or poisoned row keeps its status.
func (s *Store) RecordSkip(ctx context.Context, source, reason string) error {
	now := formatTime(time.Now())
	_, err := s.execWithRetry(ctx, `
INSERT INTO conversions (source_path, status, reason, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(source_path) DO UPDATE SET
    status     = CASE WHEN conversions.status IN (?, ?) THEN conversions.status ELSE excluded.status END,
    reason     = excluded.reason,
    updated_at = excluded.updated_at`,
		source, StatusSkipped, reason, now, now, StatusSucceeded, StatusPoisoned,
	)
	if err != nil {
		return fmt.Errorf("history skip %s: %w", source, err)
	}
	return nil
}

// Get returns the record for source, or nil when none exists.
func (s *Store) Get(ctx context.Context, source string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM conversions WHERE source_path = ?`, source)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history get %s: %w", source, err)
	}
	return rec, nil
}

// IsPoisoned reports whether source exhausted its retries and has not been
// reset since.
func (s *Store) IsPoisoned(ctx context.Context, source string) (bool, error) {
	rec, err := s.Get(ctx, source)
	if err != nil {
		return false, err
	}
	return rec != nil && rec.Status == StatusPoisoned, nil
}

// List returns records, newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM conversions`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
		query += ` WHERE status IN (` + placeholders + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY updated_at DESC, source_path`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("history list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM conversions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Reset clears a poisoned or failed record so the next event converts the
// file again. It reports whether a record existed.
func (s *Store) Reset(ctx context.Context, source string) (bool, error) {
	res, err := s.execWithRetry(ctx, `
UPDATE conversions
SET status = ?, attempts = 0, reason = ?, updated_at = ?, completed_at = NULL
WHERE source_path = ? AND status <> ?`,
		StatusFailed, "reset by operator", formatTime(time.Now()), source, StatusConverting,
	)
	if err != nil {
		return false, fmt.Errorf("history reset %s: %w", source, err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

// DaemonStopReason is recorded on attempts interrupted by shutdown or crash.
const DaemonStopReason = "daemon stopped"

// ResetInterrupted marks rows left in converting (the process died mid-attempt)
// as failed. It returns the number of rows changed.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `
UPDATE conversions
SET status = ?, last_error = ?, updated_at = ?
WHERE status = ?`,
		StatusFailed, DaemonStopReason, formatTime(time.Now()), StatusConverting,
	)
	if err != nil {
		return 0, fmt.Errorf("history reset interrupted: %w", err)
	}
	return res.RowsAffected()
}

func nullable(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
