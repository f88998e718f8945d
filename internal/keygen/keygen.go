// Package keygen writes the random key file used to seal payment secrets.
package keygen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"marketplace/internal/fileutil"
)

// Defaults for the genkey command.
const (
	DefaultDest   = "./encryption.key"
	DefaultLength = 128
)

// ErrKeyExists is returned when the destination already holds a key.
var ErrKeyExists = errors.New("key file already exists")

// Generate writes length random bytes to dest with mode 0600.
func Generate(dest string, length int) error {
	if dest == "" {
		dest = DefaultDest
	}
	if length <= 0 {
		return fmt.Errorf("key length must be positive, got %d", length)
	}
	if _, err := os.Stat(dest); err == nil {
		return existsError(dest)
	}
	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	if err := fileutil.WriteExclusive(dest, key, 0o600); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return existsError(dest)
		}
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// ExistsError reports the occupied destination. It matches ErrKeyExists.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("Key file already exists at %s; remove it first or specify a new path with --dest", e.Path)
}

func (e *ExistsError) Is(target error) bool { return target == ErrKeyExists }

func existsError(dest string) error {
	return &ExistsError{Path: dest}
}
