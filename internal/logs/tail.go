package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const maxLineBytes = 1024 * 1024

// Last returns up to limit trailing lines of path and the offset just past the
// last complete line. A missing file yields no lines and offset 0.
func Last(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}

	if limit <= 0 {
		offset, err := scanLines(file, 0, func(string) {})
		return nil, offset, err
	}
	ring := make([]string, limit)
	count := 0
	offset, err := scanLines(file, 0, func(line string) {
		ring[count%limit] = line
		count++
	})
	if err != nil {
		return nil, 0, err
	}
	if count <= limit {
		return ring[:count], offset, nil
	}
	start := count % limit
	return append(ring[start:], ring[:start]...), offset, nil
}

// FollowOptions tunes Follow.
type FollowOptions struct {
	Offset int64
	Poll   time.Duration
}

// Follow calls emit for every complete line appended to path after
// opts.Offset until ctx is done. The path is reopened on every poll so a
// replaced file (new run, rotated pointer) is read from its start.
func Follow(ctx context.Context, path string, opts FollowOptions, emit func(string)) error {
	poll := opts.Poll
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	offset := opts.Offset
	var last os.FileInfo

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			last, offset = nil, 0
		case err != nil:
			return fmt.Errorf("stat log file: %w", err)
		default:
			if last != nil && !os.SameFile(last, info) {
				offset = 0
			}
			if info.Size() < offset {
				offset = 0
			}
			last = info
			if info.Size() > offset {
				next, err := readFrom(path, offset, emit)
				if err != nil {
					return err
				}
				offset = next
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	return scanLines(file, offset, emit)
}

// scanLines emits the complete lines after offset and returns the offset past
// the last one. A trailing partial line is left for the next read.
func scanLines(file *os.File, offset int64, emit func(string)) (int64, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		chunk, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			line, rest := readLong(reader, chunk)
			if rest != nil {
				return offset, rest
			}
			if !bytes.HasSuffix(line, []byte{'\n'}) {
				return offset, nil
			}
			chunk, err = line, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(chunk))
		text := bytes.TrimRight(chunk, "\r\n")
		if len(text) > maxLineBytes {
			text = text[:maxLineBytes]
		}
		emit(string(text))
	}
}

func readLong(reader *bufio.Reader, head []byte) ([]byte, error) {
	line := append([]byte(nil), head...)
	for {
		chunk, err := reader.ReadSlice('\n')
		line = append(line, chunk...)
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return line, nil
		default:
			return nil, fmt.Errorf("read log file: %w", err)
		}
	}
}
