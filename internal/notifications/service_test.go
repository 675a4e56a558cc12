package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"reframe/internal/config"
	"reframe/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newRecorder(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte("topic rejected"))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), seen...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyConversionCompleted(context.Background(), "/in/a.mp4", "/out/a_vertical.mp4", 1, time.Second); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	srv, seen := newRecorder(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyConversionCompleted(ctx, "/in/beach_trip.mov", "/out/beach_trip_vertical.mp4", 2, 95*time.Second); err != nil {
		t.Fatalf("completed: %v", err)
	}
	if err := svc.NotifyConversionPoisoned(ctx, "/in/corrupt.mkv", 5, errors.New("ffmpeg exited with status 1")); err != nil {
		t.Fatalf("poisoned: %v", err)
	}
	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("test: %v", err)
	}

	got := seen()
	if len(got) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(got))
	}
	if got[0].title != "reframe - Converted" || !strings.Contains(got[0].body, "beach_trip.mov") || !strings.Contains(got[0].body, "1m35s (2 attempts)") {
		t.Fatalf("unexpected completed payload %+v", got[0])
	}
	if got[1].priority != "high" || got[1].tags != "reframe,convert,poisoned" || !strings.Contains(got[1].body, "failed 5 times") {
		t.Fatalf("unexpected poisoned payload %+v", got[1])
	}
	if got[2].priority != "low" || got[2].title != "reframe - Test" {
		t.Fatalf("unexpected test payload %+v", got[2])
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	srv, seen := newRecorder(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.OnSuccess = false
	cfg.Notifications.OnFailure = false
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	_ = svc.NotifyConversionCompleted(ctx, "/in/a.mp4", "/out/a.mp4", 1, time.Second)
	_ = svc.NotifyConversionPoisoned(ctx, "/in/a.mp4", 5, nil)
	_ = svc.NotifyError(ctx, errors.New("boom"), "watcher")
	if n := len(seen()); n != 0 {
		t.Fatalf("expected no requests with toggles off, got %d", n)
	}
	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("test notification must ignore toggles: %v", err)
	}
	if n := len(seen()); n != 1 {
		t.Fatalf("expected test notification to be sent, got %d", n)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newRecorder(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic rejected") {
		t.Fatalf("expected HTTP error with body, got %v", err)
	}
}
