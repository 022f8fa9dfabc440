package relay

import (
	"io"
	"sync"

	"github.com/floegence/chatrelay/crypto/e2ee"
	"github.com/floegence/chatrelay/framing"
)

// Session is the relay's per-connection state: a completed handshake's keys
// and counters, owned jointly by one receive goroutine and any number of
// sender goroutines.
//
// The receive goroutine is the sole owner of seq_recv and the sole reader of
// conn; any goroutine wanting to send to this client must hold mu, which
// serializes sequence assignment with the frame write so two senders never
// emit colliding or reordered sequence numbers.
type Session struct {
	ClientID    uint64
	DisplayName string

	conn io.Writer

	keyC2S [e2ee.KeySize]byte
	keyS2C [e2ee.KeySize]byte

	seqRecv uint64 // owned by the receive goroutine only

	mu      sync.Mutex // guards seqSend and conn writes
	seqSend uint64
}

// NewSession builds a Session from a completed handshake result.
func NewSession(clientID uint64, displayName string, conn io.Writer, keys e2ee.SessionKeyPair) *Session {
	return &Session{
		ClientID:    clientID,
		DisplayName: displayName,
		conn:        conn,
		keyC2S:      keys.C2S,
		keyS2C:      keys.S2C,
	}
}

// AcceptRecv validates seq against the strict-monotonic invariant and, if it
// passes, advances seqRecv. Called only by the owning receive goroutine, so
// it needs no lock of its own.
func (s *Session) AcceptRecv(seq uint64) bool {
	if seq <= s.seqRecv {
		return false
	}
	s.seqRecv = seq
	return true
}

// KeyC2S returns the client->server AEAD key used to open inbound frames.
func (s *Session) KeyC2S() [e2ee.KeySize]byte { return s.keyC2S }

// Send seals plaintext under this session's K_s2c, assigning the next
// sequence number, and writes the resulting frame to the session's socket.
// senderID is the AAD sender_id: the originating client's id for peer
// messages, or 0 for server-originated responses (directory, errors).
//
// The lock spans sequence assignment and the socket write so the two stay
// atomic with respect to concurrent senders.
func (s *Session) Send(senderID uint64, plaintext []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.seqSend + 1
	body, err := e2ee.Seal(s.keyS2C, plaintext, senderID, s.ClientID, seq)
	if err != nil {
		return err
	}
	if err := framing.WriteFrame(s.conn, body); err != nil {
		return err
	}
	s.seqSend = seq
	return nil
}
