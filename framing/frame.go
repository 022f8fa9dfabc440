// Package framing implements the wire-level frame codec shared by the
// handshake and the encrypted transport: every message on the wire is a
// big-endian uint32 length prefix followed by that many body bytes.
//
// The handshake exchanges exactly two JSON bodies per side; everything after
// that is an AEAD record body (see crypto/e2ee). Both travel over the same
// length-prefixed envelope.
package framing

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/floegence/chatrelay/internal/bin"
)

// DefaultMaxFrameBytes is the recommended ceiling for a single frame body.
const DefaultMaxFrameBytes = 64 * 1024

// ErrOversized is returned when a frame's declared length exceeds maxLen.
var ErrOversized = errors.New("framing: frame exceeds maximum size (OVERSIZED)")

// ErrTruncated is returned when the stream ends before a full frame arrives.
var ErrTruncated = errors.New("framing: stream ended mid-frame (TRUNCATED)")

// WriteFrame writes body as a single length-prefixed frame.
//
// The header and body are written from one buffer so a single Write call
// carries the whole frame; this matters for message-oriented transports
// (e.g. a websocket connection) where two separate writes would otherwise
// become two separate messages.
func WriteFrame(w io.Writer, body []byte) error {
	out := make([]byte, 4+len(body))
	bin.PutU32BE(out[:4], uint32(len(body)))
	copy(out[4:], body)
	_, err := w.Write(out)
	return err
}

// ReadFrame reads one length-prefixed frame, enforcing maxLen on the
// declared body length.
//
// Passing maxLen<=0 disables the size guard; callers reading from
// untrusted peers must pass a positive maxLen.
func ReadFrame(r io.Reader, maxLen int) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	n := int(bin.U32BE(hdr[:]))
	if n < 0 {
		return nil, ErrOversized
	}
	if maxLen > 0 && n > maxLen {
		return nil, ErrOversized
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return body, nil
}

// WriteJSON marshals v and writes it as a single frame.
func WriteJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return WriteFrame(w, b)
}

// ReadJSON reads one frame and unmarshals it into v.
func ReadJSON(r io.Reader, maxLen int, v any) error {
	b, err := ReadFrame(r, maxLen)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
