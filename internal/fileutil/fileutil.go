// Package fileutil stores uploaded packages, icons, and key files.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned when a stream exceeds the allowed size.
var ErrTooLarge = errors.New("file exceeds the maximum upload size")

// Saved describes a file written by SaveStream.
type Saved struct {
	Path string
	Hash string
	Size int64
}

// SaveStream copies r into dst while hashing it. A limit above zero caps the
// number of bytes accepted; dst is removed when the copy fails.
func SaveStream(r io.Reader, dst string, limit int64) (Saved, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Saved{}, fmt.Errorf("create upload dir: %w", err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Saved{}, err
	}
	defer func() {
		_ = out.Close()
	}()

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), src)
	if err == nil && limit > 0 && written > limit {
		err = ErrTooLarge
	}
	if err == nil {
		err = out.Close()
	}
	if err != nil {
		_ = os.Remove(dst)
		return Saved{}, err
	}
	return Saved{Path: dst, Hash: "sha256:" + hex.EncodeToString(hasher.Sum(nil)), Size: written}, nil
}

// HashFile returns the sha256 digest of path in the form SaveStream uses.
func HashFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, in); err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(hasher.Sum(nil)), nil
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// WriteExclusive creates path with data and mode, failing with an error
// matching fs.ErrExist when the file is already there.
func WriteExclusive(path string, data []byte, mode os.FileMode) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	// The umask may have narrowed the mode at creation.
	return os.Chmod(path, mode)
}
