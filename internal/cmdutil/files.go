package cmdutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// UsageError distinguishes operator mistakes (exit 2) from runtime failures
// (exit 1) in the chat CLIs.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// IsUsage reports whether err is a UsageError, directly or wrapped.
func IsUsage(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

// RefuseOverwrite fails with a UsageError when path exists and overwrite was
// not requested, protecting generated key material from an accidental second
// run. A stat failure other than "does not exist" is passed through as a
// runtime error.
func RefuseOverwrite(path string, overwrite bool) error {
	if path == "" || overwrite {
		return nil
	}
	switch _, err := os.Stat(path); {
	case err == nil:
		return &UsageError{Msg: fmt.Sprintf("refusing to overwrite existing file: %s (use --overwrite)", path)}
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return err
	}
}
