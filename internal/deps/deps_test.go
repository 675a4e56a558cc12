package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckFFmpegReadsVersion(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "ffmpeg")
	script := []byte("#!/bin/sh\necho 'ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023 the FFmpeg developers'\necho 'built with gcc 13'\n")
	if err := os.WriteFile(stub, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	status := CheckFFmpeg(context.Background(), stub)
	if !status.Available {
		t.Fatalf("expected ffmpeg available, got %#v", status)
	}
	if status.Detail != "version 6.1.1-3ubuntu5" {
		t.Fatalf("unexpected version detail %q", status.Detail)
	}
}

func TestCheckFFmpegMissing(t *testing.T) {
	status := CheckFFmpeg(context.Background(), filepath.Join(t.TempDir(), "ffmpeg"))
	if status.Available || status.Detail == "" {
		t.Fatalf("expected unavailable ffmpeg with detail, got %#v", status)
	}
}

func TestParseVersion(t *testing.T) {
	cases := map[string]string{
		"ffmpeg version n7.0 Copyright": "version n7.0",
		"":                              "",
		"garbage":                       "",
	}
	for input, want := range cases {
		if got := parseVersion(input); got != want {
			t.Fatalf("parseVersion(%q) = %q, want %q", input, got, want)
		}
	}
}
