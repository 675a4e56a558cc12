package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"reframe/internal/history"
	"reframe/internal/testsupport"
)

func TestStartAttemptCountsAcrossCalls(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := store.StartAttempt(ctx, "/in/clip.mp4", "/out/clip_vertical.mp4", "token")
		if err != nil {
			t.Fatalf("StartAttempt: %v", err)
		}
		if got != want {
			t.Fatalf("attempt %d: got %d", want, got)
		}
	}

	rec, err := store.Get(ctx, "/in/clip.mp4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil || rec.Status != history.StatusConverting || rec.OutputPath != "/out/clip_vertical.mp4" {
		t.Fatalf("unexpected record %#v", rec)
	}
}

func TestFinishRecordsOutcome(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := store.StartAttempt(ctx, "/in/a.mp4", "/out/a_vertical.mp4", "t1"); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if err := store.Finish(ctx, "/in/a.mp4", history.Result{Status: history.StatusSucceeded, Duration: 1500 * time.Millisecond}); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	rec, err := store.Get(ctx, "/in/a.mp4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != history.StatusSucceeded || rec.Duration != 1500*time.Millisecond || rec.CompletedAt.IsZero() {
		t.Fatalf("unexpected record %#v", rec)
	}

	if err := store.Finish(ctx, "/in/unknown.mp4", history.Result{Status: history.StatusFailed}); err == nil {
		t.Fatal("expected error finishing an unknown source")
	}
}

func TestPoisonAndReset(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	src := "/in/corrupt.mkv"

	if _, err := store.StartAttempt(ctx, src, "/out/corrupt_vertical.mp4", "t"); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if err := store.Finish(ctx, src, history.Result{Status: history.StatusPoisoned, Error: "ffmpeg exited with status 1"}); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	poisoned, err := store.IsPoisoned(ctx, src)
	if err != nil || !poisoned {
		t.Fatalf("expected poisoned, got %v (err=%v)", poisoned, err)
	}

	// A skip must not hide the poisoned status.
	if err := store.RecordSkip(ctx, src, "readiness_timeout"); err != nil {
		t.Fatalf("RecordSkip: %v", err)
	}
	if poisoned, _ := store.IsPoisoned(ctx, src); !poisoned {
		t.Fatal("skip overwrote poisoned status")
	}

	ok, err := store.Reset(ctx, src)
	if err != nil || !ok {
		t.Fatalf("Reset = %v, %v", ok, err)
	}
	rec, _ := store.Get(ctx, src)
	if rec.Status != history.StatusFailed || rec.Attempts != 0 {
		t.Fatalf("unexpected record after reset %#v", rec)
	}
	if ok, _ := store.Reset(ctx, "/in/never-seen.mp4"); ok {
		t.Fatal("reset reported success for unknown source")
	}
}

func TestListFiltersByStatus(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := store.StartAttempt(ctx, "/in/ok.mp4", "/out/ok_vertical.mp4", "a"); err != nil {
		t.Fatal(err)
	}
	if err := store.Finish(ctx, "/in/ok.mp4", history.Result{Status: history.StatusSucceeded}); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordSkip(ctx, "/in/slow.mp4", "readiness_timeout"); err != nil {
		t.Fatal(err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	skipped, err := store.List(ctx, history.StatusSkipped)
	if err != nil {
		t.Fatalf("List skipped: %v", err)
	}
	if len(skipped) != 1 || skipped[0].SourcePath != "/in/slow.mp4" || skipped[0].Reason != "readiness_timeout" {
		t.Fatalf("unexpected skipped list %#v", skipped)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[history.StatusSucceeded] != 1 || stats[history.StatusSkipped] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestResetInterrupted(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := store.StartAttempt(ctx, "/in/a.mp4", "/out/a_vertical.mp4", "a"); err != nil {
		t.Fatal(err)
	}
	changed, err := store.ResetInterrupted(ctx)
	if err != nil || changed != 1 {
		t.Fatalf("ResetInterrupted = %d, %v", changed, err)
	}
	rec, _ := store.Get(ctx, "/in/a.mp4")
	if rec.Status != history.StatusFailed || rec.LastError != history.DaemonStopReason {
		t.Fatalf("unexpected record %#v", rec)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := history.Open(path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if got, err := history.ParseStatus(" Poisoned "); err != nil || got != history.StatusPoisoned {
		t.Fatalf("ParseStatus = %q, %v", got, err)
	}
	if _, err := history.ParseStatus("done"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
