// Package e2ee implements the handshake and transport cryptography: ECDHE
// key agreement on P-256, RSA-PSS transcript signatures, HKDF-SHA256 key
// derivation, and AES-128-GCM sealed records bound to sender/target/sequence
// associated data.
package e2ee

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
)

// ErrInvalidPublicKey is returned when a peer's PEM-encoded public key does
// not parse or does not lie on the expected curve.
var ErrInvalidPublicKey = errors.New("e2ee: invalid peer public key")

const pemBlockType = "PUBLIC KEY"

// GenerateEphemeralKeypair creates a fresh P-256 ECDH keypair and returns the
// private key alongside the SubjectPublicKeyInfo PEM encoding of the public
// half.
func GenerateEphemeralKeypair() (priv *ecdh.PrivateKey, pubPEM []byte, err error) {
	priv, err = ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	pubPEM, err = encodeECDHPublicKey(priv.PublicKey())
	if err != nil {
		return nil, nil, err
	}
	return priv, pubPEM, nil
}

func encodeECDHPublicKey(pub *ecdh.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemBlockType, Bytes: der}), nil
}

func parseECDHPublicKey(pemBytes []byte) (*ecdh.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidPublicKey
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	ecdsaLike, ok := pub.(interface {
		ECDH() (*ecdh.PublicKey, error)
	})
	if ok {
		k, err := ecdsaLike.ECDH()
		if err != nil {
			return nil, ErrInvalidPublicKey
		}
		return k, nil
	}
	return nil, ErrInvalidPublicKey
}

// Agree performs raw ECDH on P-256 between sk and the peer's PEM-encoded
// public key, returning the 32-byte shared secret (the X coordinate of the
// resulting point, per crypto/ecdh).
func Agree(sk *ecdh.PrivateKey, peerPubPEM []byte) ([]byte, error) {
	peerPub, err := parseECDHPublicKey(peerPubPEM)
	if err != nil {
		return nil, err
	}
	secret, err := sk.ECDH(peerPub)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	return secret, nil
}
