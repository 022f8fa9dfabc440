// Package securefile writes the relay's key material to disk with
// owner-only permissions enforced even where os.WriteFile would leave a
// pre-existing file's looser mode in place.
package securefile

import (
	"os"
	"path/filepath"
	"runtime"
)

// MkdirAllOwnerOnly creates dir and any missing parents, then forces dir
// itself to mode 0700. The explicit chmod matters for a directory that
// already existed: MkdirAll never tightens permissions on one.
//
// On Windows the mode bits carry no meaning, so only existence is ensured.
func MkdirAllOwnerOnly(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(dir, 0o700)
}

// WriteFileAtomic replaces filename with data via a temp file and rename,
// so a crash mid-write never leaves a truncated key on disk, and applies
// perm to the final path even when overwriting (os.WriteFile only sets perm
// on create).
func WriteFileAtomic(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	f, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".tmp.*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	committed := false
	defer func() {
		_ = f.Close()
		if !committed {
			_ = os.Remove(tmp)
		}
	}()

	if runtime.GOOS != "windows" {
		if err := f.Chmod(perm); err != nil {
			return err
		}
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if runtime.GOOS == "windows" {
		// Rename on Windows refuses to replace an existing destination.
		_ = os.Remove(filename)
	}
	if err := os.Rename(tmp, filename); err != nil {
		return err
	}
	committed = true
	if runtime.GOOS != "windows" {
		return os.Chmod(filename, perm)
	}
	return nil
}
