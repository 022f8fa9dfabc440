// Package chatclient implements the user-facing half of the chat protocol:
// the ECDHE+RSA-PSS handshake as seen from the client, the endpoint state
// that mirrors the relay's per-session counters, and the interactive
// command loop (/listar, /enviar, /sair).
package chatclient

import (
	"io"
	"sync"

	"github.com/floegence/chatrelay/crypto/e2ee"
	"github.com/floegence/chatrelay/framing"
)

// Endpoint is the client-side mirror of relay.Session: it holds only this
// client's own key pair, its assigned id, and its own send/receive
// counters. Unlike the relay, an Endpoint only ever talks to one peer (the
// relay), so there is no registry.
type Endpoint struct {
	ClientID    uint64
	DisplayName string

	keys e2ee.SessionKeyPair

	conn io.ReadWriter

	seqRecv uint64 // owned by the reader goroutine only

	mu      sync.Mutex // guards seqSend and conn writes
	seqSend uint64
}

// NewEndpoint builds an Endpoint from a completed handshake result.
func NewEndpoint(clientID uint64, displayName string, conn io.ReadWriter, keys e2ee.SessionKeyPair) *Endpoint {
	return &Endpoint{
		ClientID:    clientID,
		DisplayName: displayName,
		conn:        conn,
		keys:        keys,
	}
}

// AcceptRecv validates seq against the strict-monotonic invariant and, if
// it passes, advances seqRecv. Called only by the owning reader goroutine.
func (e *Endpoint) AcceptRecv(seq uint64) bool {
	if seq <= e.seqRecv {
		return false
	}
	e.seqRecv = seq
	return true
}

// KeyS2C returns the server->client key used to open inbound frames.
func (e *Endpoint) KeyS2C() [e2ee.KeySize]byte { return e.keys.S2C }

// Send seals plaintext under K_c2s with the next sequence number and AAD
// target_id, writing the resulting frame to the relay connection. The lock
// spans sequence assignment and the write so concurrent senders (the
// command loop is in practice single-threaded, but the lock keeps the
// invariant explicit) cannot interleave.
func (e *Endpoint) Send(targetID uint64, plaintext []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	seq := e.seqSend + 1
	body, err := e2ee.Seal(e.keys.C2S, plaintext, e.ClientID, targetID, seq)
	if err != nil {
		return err
	}
	if err := framing.WriteFrame(e.conn, body); err != nil {
		return err
	}
	e.seqSend = seq
	return nil
}

// ReadFrame reads the next raw AEAD record body from the relay connection.
func (e *Endpoint) ReadFrame(maxFrame int) ([]byte, error) {
	return framing.ReadFrame(e.conn, maxFrame)
}
