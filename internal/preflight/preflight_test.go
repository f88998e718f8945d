package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marketplace/internal/keygen"
	"marketplace/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if r := CheckFreeSpace("volume", dir, 0); !r.Passed {
		t.Fatalf("expected pass with no minimum, got: %s", r.Detail)
	}
	// No test volume has an exbibyte free.
	if r := CheckFreeSpace("volume", dir, 1<<40); r.Passed {
		t.Fatalf("expected failure for huge minimum, got: %s", r.Detail)
	}
	if r := CheckFreeSpace("volume", filepath.Join(dir, "missing"), 0); r.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckKeyFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "encryption.key")
	if err := keygen.Generate(good, keygen.DefaultLength); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	short := filepath.Join(dir, "short.key")
	if err := os.WriteFile(short, []byte("tiny"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		pass bool
	}{
		{"generated key", good, true},
		{"short key", short, false},
		{"missing key", filepath.Join(dir, "nope.key"), false},
		{"unset", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if r := CheckKeyFile("key", tc.path); r.Passed != tc.pass {
				t.Fatalf("passed = %v, want %v (%s)", r.Passed, tc.pass, r.Detail)
			}
		})
	}
}

func TestCheckPayPal(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer ok.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name     string
		endpoint string
		pass     bool
	}{
		{"reachable", ok.URL, true},
		{"server error", broken.URL, false},
		{"connection refused", closedURL, false},
		{"missing", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if r := CheckPayPal(context.Background(), tc.endpoint); r.Passed != tc.pass {
				t.Fatalf("passed = %v, want %v (%s)", r.Passed, tc.pass, r.Detail)
			}
		})
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_PaymentsDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Payments.Enabled = false
	cfg.Uploads.MinFreeMiB = 0

	results := RunAll(context.Background(), cfg)
	// data, uploads, icons, logs, free space
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_PaymentsEnabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithPayPalEndpoint(srv.URL))
	cfg.Payments.Enabled = true
	cfg.Uploads.MinFreeMiB = 0

	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "Payment key" {
		t.Fatalf("expected only the missing key to fail, got %+v", failed)
	}

	if err := keygen.Generate(cfg.Payments.KeyFile, keygen.DefaultLength); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if failed := Failed(RunAll(context.Background(), cfg)); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}
