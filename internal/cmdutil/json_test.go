package cmdutil

import (
	"bytes"
	"testing"
)

func TestWriteJSONEmitsOneLine(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, map[string]int{"clients": 2}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if got, want := buf.String(), "{\"clients\":2}\n"; got != want {
		t.Fatalf("WriteJSON output = %q, want %q", got, want)
	}
}
