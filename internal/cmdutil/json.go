package cmdutil

import (
	"encoding/json"
	"io"
)

// WriteJSON writes v to w as a single JSON line. The chat CLIs print their
// machine-readable "ready" and "result" records through this so scripts can
// consume stdout line by line.
func WriteJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
