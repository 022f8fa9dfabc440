package e2ee

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// handshakeInfo is the exact ASCII info string bound into every key
// derivation; both sides must use the same bytes or the derived halves
// diverge silently.
var handshakeInfo = []byte("handshake data")

// KeySize is the length in bytes of each directional AES-128 key.
const KeySize = 16

// SaltSize is the length in bytes of the server-generated HKDF salt.
const SaltSize = 16

// SessionKeyPair holds the two directional AES-128 keys derived from one
// handshake's shared secret.
type SessionKeyPair struct {
	C2S [KeySize]byte
	S2C [KeySize]byte
}

// DeriveKeys expands sharedSecret with HKDF-SHA256 under salt into 32 bytes
// and splits them into the client->server and server->client halves.
//
// Deterministic in (sharedSecret, salt): the same inputs always yield the
// same key pair, which the handshake round-trip test relies on.
func DeriveKeys(sharedSecret, salt []byte) (SessionKeyPair, error) {
	reader := hkdf.New(sha256.New, sharedSecret, salt, handshakeInfo)
	var out [2 * KeySize]byte
	if _, err := io.ReadFull(reader, out[:]); err != nil {
		return SessionKeyPair{}, err
	}
	var pair SessionKeyPair
	copy(pair.C2S[:], out[:KeySize])
	copy(pair.S2C[:], out[KeySize:])
	return pair, nil
}
