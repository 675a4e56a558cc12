package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// versionReply answers "ffmpeg -version" without counting an invocation.
const versionReply = `case " $* " in *" -version "*) echo "ffmpeg version 6.1-stub Copyright (c) the FFmpeg developers"; exit 0;; esac
`

// FFmpegStub is a shell script standing in for ffmpeg. It counts its
// invocations and writes a small payload to its last argument.
type FFmpegStub struct {
	Path    string
	counter string
	t       testing.TB
}

// NewFFmpegStub writes a stub into dir that exits 1 for the first failures
// invocations and succeeds afterwards.
func NewFFmpegStub(t testing.TB, dir string, failures int) *FFmpegStub {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
`+versionReply+`count_file=%q
n=$(cat "$count_file" 2>/dev/null || echo 0)
n=$((n + 1))
echo "$n" > "$count_file"
if [ "$n" -le %d ]; then
  echo "Error while decoding stream #0:0: simulated failure $n" >&2
  exit 1
fi
echo "frame=  30 fps=0.0 q=-1.0 Lsize=       1kB time=00:00:01.00 speed=10x" >&2
for last; do :; done
printf 'vertical video' > "$last"
`, filepath.Join(dir, "ffmpeg.count"), failures)
	return writeStub(t, dir, "ffmpeg", script)
}

// NewHangingFFmpegStub writes a stub that blocks until it receives SIGTERM.
func NewHangingFFmpegStub(t testing.TB, dir string) *FFmpegStub {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
`+versionReply+`count_file=%q
n=$(cat "$count_file" 2>/dev/null || echo 0)
echo "$((n + 1))" > "$count_file"
for last; do :; done
printf 'partial' > "$last"
sleep 30 &
pid=$!
trap 'kill $pid; exit 143' TERM
wait $pid
`, filepath.Join(dir, "ffmpeg.count"))
	return writeStub(t, dir, "ffmpeg-hang", script)
}

// NewSilentFFmpegStub writes a stub that exits zero without producing output.
func NewSilentFFmpegStub(t testing.TB, dir string) *FFmpegStub {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
`+versionReply+`count_file=%q
n=$(cat "$count_file" 2>/dev/null || echo 0)
echo "$((n + 1))" > "$count_file"
exit 0
`, filepath.Join(dir, "ffmpeg.count"))
	return writeStub(t, dir, "ffmpeg-silent", script)
}

func writeStub(t testing.TB, dir, name, script string) *FFmpegStub {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir stub dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return &FFmpegStub{Path: path, counter: filepath.Join(dir, "ffmpeg.count"), t: t}
}

// Invocations returns how many times the stub has run.
func (s *FFmpegStub) Invocations() int {
	s.t.Helper()
	data, err := os.ReadFile(s.counter)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		s.t.Fatalf("read stub counter: %v", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return 0
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		s.t.Fatalf("parse stub counter %q: %v", data, err)
	}
	return n
}

// InvocationsAt reads the invocation count of a stub created at binary.
func InvocationsAt(t testing.TB, binary string) int {
	t.Helper()
	stub := &FFmpegStub{Path: binary, counter: filepath.Join(filepath.Dir(binary), "ffmpeg.count"), t: t}
	return stub.Invocations()
}
