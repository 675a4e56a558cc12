package fileutil

import (
	"crypto/sha256"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestPublishNoClobber(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, ".clip.partial.mp4")
	dst := filepath.Join(dir, "clip.mp4")

	if err := os.WriteFile(src, []byte("encoded"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := PublishNoClobber(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "encoded" {
		t.Fatalf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(src); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected source removed, stat err=%v", err)
	}
}

func TestPublishNoClobberKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, ".clip.partial.mp4")
	dst := filepath.Join(dir, "clip.mp4")

	if err := os.WriteFile(src, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := PublishNoClobber(src, dst)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected fs.ErrExist, got %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "first" {
		t.Fatalf("existing output overwritten: %q", got)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected source kept for caller cleanup: %v", err)
	}
}

func TestCopyFileExclusive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	if err := os.WriteFile(src, []byte("data"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileExclusive(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "data" {
		t.Fatalf("content mismatch: got %q", got)
	}

	if err := CopyFileExclusive(src, dst); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected fs.ErrExist on second copy, got %v", err)
	}
}

func TestCopyFileExclusiveMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.bin")
	if err := CopyFileExclusive(filepath.Join(dir, "missing"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected no destination, stat err=%v", err)
	}
}

func TestVerifyCopyReadsBackFromDisk(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "copy.mp4")
	if err := os.WriteFile(dst, []byte("vertical video"), 0o644); err != nil {
		t.Fatalf("write copy: %v", err)
	}
	good := sha256.Sum256([]byte("vertical video"))
	if err := verifyCopy(dst, 14, good[:]); err != nil {
		t.Fatalf("expected matching copy to verify: %v", err)
	}

	other := sha256.Sum256([]byte("vertical vide0"))
	if err := verifyCopy(dst, 14, other[:]); err == nil {
		t.Fatal("expected hash mismatch for differing content")
	}
	if err := verifyCopy(dst, 20, good[:]); err == nil {
		t.Fatal("expected size mismatch for short copy")
	}
}
