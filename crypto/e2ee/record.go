package e2ee

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/floegence/chatrelay/internal/bin"
)

const (
	nonceSize  = 12
	idSize     = 16
	seqSize    = 8
	aadSize    = idSize + idSize + seqSize // 40
	headerSize = nonceSize + aadSize       // 52
)

// ErrShortRecord is returned by Open when a record is too small to contain
// the fixed header and a GCM tag.
var ErrShortRecord = errors.New("e2ee: record shorter than minimum frame size")

// ErrAuth is returned by Open when the GCM tag does not verify.
var ErrAuth = errors.New("e2ee: record authentication failed")

// Record is the result of successfully opening a sealed frame.
//
// SenderID and TargetID are full 128-bit values: the relay only ever issues
// ids that fit in a uint64, but the wire layout reserves the full width, so
// a frame naming an id outside that range decodes here rather than silently
// truncating and aliasing onto a registered session.
type Record struct {
	Plaintext []byte
	SenderID  *big.Int
	TargetID  *big.Int
	Seq       uint64
}

func newGCM(key [KeySize]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key, binding senderID, targetID, and seq into
// the associated data, and returns the wire-layout frame body:
//
//	nonce(12) || sender_id(16) || target_id(16) || seq(8) || ciphertext+tag
func Seal(key [KeySize]byte, plaintext []byte, senderID, targetID, seq uint64) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, headerSize, headerSize+len(plaintext)+aead.Overhead())
	nonce := out[:nonceSize]
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	bin.PutID128BE(out[nonceSize:nonceSize+idSize], senderID)
	bin.PutID128BE(out[nonceSize+idSize:nonceSize+2*idSize], targetID)
	bin.PutU64BE(out[nonceSize+2*idSize:headerSize], seq)

	aad := out[nonceSize:headerSize]
	out = aead.Seal(out, nonce, plaintext, aad)
	return out, nil
}

// Open verifies and decrypts a frame body produced by Seal, returning the
// plaintext and the AAD fields. It rejects frames shorter than the 52-byte
// minimum and frames whose GCM tag does not verify.
func Open(key [KeySize]byte, frame []byte) (Record, error) {
	if len(frame) < headerSize {
		return Record{}, ErrShortRecord
	}
	aead, err := newGCM(key)
	if err != nil {
		return Record{}, err
	}
	if len(frame) < headerSize+aead.Overhead() {
		return Record{}, ErrShortRecord
	}
	nonce := frame[:nonceSize]
	aad := frame[nonceSize:headerSize]
	ciphertext := frame[headerSize:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return Record{}, ErrAuth
	}

	senderID := bin.ID128BE(frame[nonceSize : nonceSize+idSize])
	targetID := bin.ID128BE(frame[nonceSize+idSize : nonceSize+2*idSize])
	seq := bin.U64BE(frame[nonceSize+2*idSize : headerSize])

	return Record{Plaintext: plaintext, SenderID: senderID, TargetID: targetID, Seq: seq}, nil
}

// IDEquals reports whether id (a full 128-bit wire value) equals the
// relay-assigned 64-bit client id want.
func IDEquals(id *big.Int, want uint64) bool {
	return id.IsUint64() && id.Uint64() == want
}
