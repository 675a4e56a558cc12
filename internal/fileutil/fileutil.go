package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// PublishNoClobber moves src to dst without ever replacing an existing dst.
// It hard-links first; filesystems without link support fall back to an
// exclusive verified copy. src is removed once dst is in place. When dst
// already exists the returned error wraps fs.ErrExist and src is kept.
func PublishNoClobber(src, dst string) error {
	err := os.Link(src, dst)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("publish %s: %w", dst, fs.ErrExist)
	case linkUnsupported(err):
		if err := CopyFileExclusive(src, dst); err != nil {
			return fmt.Errorf("publish %s: %w", dst, err)
		}
	default:
		return fmt.Errorf("publish %s: %w", dst, err)
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s after publish: %w", src, err)
	}
	return nil
}

func linkUnsupported(err error) bool {
	return errors.Is(err, unix.EXDEV) ||
		errors.Is(err, unix.EPERM) ||
		errors.Is(err, unix.ENOTSUP) ||
		errors.Is(err, unix.EMLINK)
}

// CopyFileExclusive copies src to a dst that must not exist yet. After the
// copy is flushed, dst is read back and its size and SHA256 must match src.
// dst is removed on any failure after creation.
func CopyFileExclusive(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	srcHasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHasher))
	if err == nil && written != srcInfo.Size() {
		err = fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = verifyCopy(dst, written, srcHasher.Sum(nil))
	}
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

// verifyCopy re-reads dst from disk and compares it with the source digest.
func verifyCopy(dst string, size int64, want []byte) error {
	f, err := os.Open(dst)
	if err != nil {
		return fmt.Errorf("reopen copy: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return fmt.Errorf("read back copy: %w", err)
	}
	if n != size {
		return fmt.Errorf("copy size mismatch: expected %d bytes on disk, found %d", size, n)
	}
	if !bytes.Equal(h.Sum(nil), want) {
		return errors.New("copy hash mismatch: file corrupted during copy")
	}
	return nil
}
