package cmdutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestRefuseOverwrite(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "server.crt")
	if err := os.WriteFile(existing, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := RefuseOverwrite(filepath.Join(dir, "missing.pem"), false); err != nil {
		t.Fatalf("RefuseOverwrite(missing) = %v, want nil", err)
	}
	if err := RefuseOverwrite(existing, true); err != nil {
		t.Fatalf("RefuseOverwrite(existing, overwrite) = %v, want nil", err)
	}

	err := RefuseOverwrite(existing, false)
	if err == nil {
		t.Fatalf("RefuseOverwrite(existing) = nil, want UsageError")
	}
	if !IsUsage(err) {
		t.Fatalf("RefuseOverwrite(existing) = %T, want *UsageError", err)
	}
}

func TestRefuseOverwriteStatFailureIsNotUsage(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("chmod-based permission test is not portable on windows")
	}
	parent := t.TempDir()
	locked := filepath.Join(parent, "locked")
	if err := os.MkdirAll(locked, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	target := filepath.Join(locked, "key.pem")
	if err := os.WriteFile(target, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o700) })

	err := RefuseOverwrite(target, false)
	if err == nil {
		t.Fatalf("RefuseOverwrite() = nil, want stat error")
	}
	if IsUsage(err) {
		t.Fatalf("stat failure misclassified as usage error: %v", err)
	}
}
