package framing

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte("hello world")
	if err := WriteFrame(&buf, body); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf, DefaultMaxFrameBytes)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("ReadFrame() = %q, want %q", got, body)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:6])
	if _, err := ReadFrame(truncated, DefaultMaxFrameBytes); err != ErrTruncated {
		t.Fatalf("ReadFrame() error = %v, want ErrTruncated", err)
	}
}

func TestReadFrameOversized(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, make([]byte, 100)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if _, err := ReadFrame(&buf, 10); err != ErrOversized {
		t.Fatalf("ReadFrame() error = %v, want ErrOversized", err)
	}
}

func TestWriteReadJSONRoundTrip(t *testing.T) {
	type payload struct {
		Type string `json:"type"`
		N    int    `json:"n"`
	}
	var buf bytes.Buffer
	in := payload{Type: "hello", N: 7}
	if err := WriteJSON(&buf, in); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var out payload
	if err := ReadJSON(&buf, DefaultMaxFrameBytes, &out); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if out != in {
		t.Fatalf("ReadJSON() = %+v, want %+v", out, in)
	}
}
