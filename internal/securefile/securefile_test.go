package securefile

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestMkdirAllOwnerOnly(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "a", "b")
	if err := MkdirAllOwnerOnly(dir); err != nil {
		t.Fatalf("MkdirAllOwnerOnly: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected directory")
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0o700 {
			t.Fatalf("dir mode = %o, want 0700", perm)
		}
	}
}

func TestMkdirAllOwnerOnlyTightensExisting(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("chmod-based permission test is not portable on windows")
	}
	dir := t.TempDir()
	sub := filepath.Join(dir, "keys")
	if err := os.MkdirAll(sub, 0o777); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := MkdirAllOwnerOnly(sub); err != nil {
		t.Fatalf("MkdirAllOwnerOnly: %v", err)
	}
	info, err := os.Stat(sub)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Fatalf("dir mode = %o, want 0700 even though it pre-existed with looser permissions", perm)
	}
}

func TestWriteFileAtomicCreatesWithPerm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_private_key.pem")
	if err := WriteFileAtomic(path, []byte("secret"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "secret" {
		t.Fatalf("content = %q, want %q", got, "secret")
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Fatalf("file mode = %o, want 0600", perm)
		}
	}
}

func TestWriteFileAtomicOverwritesAndFixesPerm(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("chmod-based permission test is not portable on windows")
	}
	path := filepath.Join(t.TempDir(), "server.crt")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("fresh"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "fresh" {
		t.Fatalf("content = %q, want %q", got, "fresh")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("file mode after overwrite = %o, want 0600", perm)
	}
}

func TestWriteFileAtomicLeavesNoTempFileOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.crt")
	if err := WriteFileAtomic(path, []byte("cert"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dir has %d entries after write, want exactly the final file", len(entries))
	}
}
