package secrets_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"marketplace/internal/secrets"
)

func TestSealOpen(t *testing.T) {
	sealer, err := secrets.NewSealer(bytes.Repeat([]byte{7}, 128))
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	first, err := sealer.Seal("permissions-token")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	second, _ := sealer.Seal("permissions-token")
	if first == second {
		t.Fatal("expected random nonces to produce different ciphertexts")
	}
	plain, err := sealer.Open(first)
	if err != nil || plain != "permissions-token" {
		t.Fatalf("Open: %q %v", plain, err)
	}

	other, _ := secrets.NewSealer(bytes.Repeat([]byte{8}, 128))
	if _, err := other.Open(first); !errors.Is(err, secrets.ErrInvalidCiphertext) {
		t.Fatalf("expected invalid ciphertext with another key, got %v", err)
	}
	if _, err := sealer.Open("not base64!"); !errors.Is(err, secrets.ErrInvalidCiphertext) {
		t.Fatalf("expected invalid ciphertext, got %v", err)
	}
}

func TestLoadKey(t *testing.T) {
	dir := t.TempDir()
	short := filepath.Join(dir, "short.key")
	if err := os.WriteFile(short, []byte("abc"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := secrets.LoadKey(short); err == nil {
		t.Fatal("expected short key to be rejected")
	}
	good := filepath.Join(dir, "good.key")
	if err := os.WriteFile(good, bytes.Repeat([]byte{1}, 64), 0o600); err != nil {
		t.Fatal(err)
	}
	key, err := secrets.LoadKey(good)
	if err != nil || len(key) != 64 {
		t.Fatalf("LoadKey: %d %v", len(key), err)
	}
	if _, err := secrets.LoadKey(filepath.Join(dir, "missing.key")); err == nil {
		t.Fatal("expected missing key error")
	}
}
