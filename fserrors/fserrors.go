// Package fserrors classifies connection-ending failures into the stable
// kinds the relay and client use to decide how to react: close silently,
// close with a log line, or reply to the sender without closing.
package fserrors

import (
	"errors"
	"fmt"
)

// Kind is one of the error classes from the error handling design: every
// failure that can end a session belongs to exactly one kind.
type Kind string

const (
	// KindTransport covers partial reads, EOF mid-frame, and oversized frames.
	KindTransport Kind = "transport"
	// KindProtocol covers malformed JSON, unknown types, and missing fields.
	KindProtocol Kind = "protocol"
	// KindCrypto covers PEM parse failures, ECDH failures, and AEAD/signature
	// verification failures.
	KindCrypto Kind = "crypto"
	// KindReplay covers an inbound sequence number that is not strictly
	// greater than the session's last accepted sequence.
	KindReplay Kind = "replay"
	// KindRouting covers a send_message whose target_id is not registered;
	// unlike the other kinds this one does not end the session.
	KindRouting Kind = "routing"
	// KindStartup covers missing key files and listener bind failures.
	KindStartup Kind = "startup"
)

// Stage identifies which part of the connection lifecycle failed.
type Stage string

const (
	StageFrame     Stage = "frame"
	StageHandshake Stage = "handshake"
	StageDispatch  Stage = "dispatch"
	StageSend      Stage = "send"
	StageStartup   Stage = "startup"
)

// Error is a structured, programmatically identifiable session failure.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s/%s", e.Stage, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds a classified Error. err may be nil only for sentinel uses.
func Wrap(stage Stage, kind Kind, err error) error {
	return &Error{Stage: stage, Kind: kind, Err: err}
}

// CloseSilently reports whether a Kind should terminate the session without
// a reply to the peer (every kind except KindRouting).
func CloseSilently(err error) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return true
	}
	return fe.Kind != KindRouting
}
