package e2ee

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"time"
)

// ErrInvalidIdentity is returned when a PEM-encoded key or certificate fails
// to parse.
var ErrInvalidIdentity = errors.New("e2ee: invalid server identity material")

// ServerIdentity is the relay's long-term signing identity: an RSA-2048
// private key and a self-signed certificate pinning its public half.
//
// Immutable once loaded; safe for concurrent use by every session's
// handshake goroutine without a lock.
type ServerIdentity struct {
	PrivateKey *rsa.PrivateKey
	CertPEM    []byte
}

// LoadServerIdentity reads an unencrypted PKCS#8 RSA private key and a PEM
// self-signed certificate from disk.
func LoadServerIdentity(keyPath, certPath string) (*ServerIdentity, error) {
	keyPEM, err := readFile(keyPath)
	if err != nil {
		return nil, err
	}
	certPEM, err := readFile(certPath)
	if err != nil {
		return nil, err
	}
	return ParseServerIdentity(keyPEM, certPEM)
}

// ParseServerIdentity parses an identity from PEM bytes already in memory.
func ParseServerIdentity(keyPEM, certPEM []byte) (*ServerIdentity, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, ErrInvalidIdentity
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, ErrInvalidIdentity
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrInvalidIdentity
	}
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil || certBlock.Type != "CERTIFICATE" {
		return nil, ErrInvalidIdentity
	}
	if _, err := x509.ParseCertificate(certBlock.Bytes); err != nil {
		return nil, ErrInvalidIdentity
	}
	return &ServerIdentity{PrivateKey: rsaKey, CertPEM: certPEM}, nil
}

// Sign produces an RSA-PSS signature over data using SHA-256, MGF1-SHA256,
// and the maximum PSS salt length.
func (id *ServerIdentity) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return rsa.SignPSS(rand.Reader, id.PrivateKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
}

// VerifyWithCert verifies an RSA-PSS signature over data against the public
// key in a self-signed certificate (the client passes its pinned copy), using the same
// SHA-256/MGF1-SHA256/max-salt parameters as Sign.
func VerifyWithCert(certPEM, data, signature []byte) error {
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return ErrInvalidIdentity
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return ErrInvalidIdentity
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return ErrInvalidIdentity
	}
	digest := sha256.Sum256(data)
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], signature, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	}); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

// ErrSignatureInvalid is returned when an RSA-PSS signature fails
// verification.
var ErrSignatureInvalid = errors.New("e2ee: signature verification failed")

// GenerateServerIdentity creates a fresh RSA-2048 key and a self-signed
// certificate over it, valid for validFor. Intended for the keygen CLI, not
// for the relay's runtime path.
func GenerateServerIdentity(commonName string, validFor time.Duration) (keyPEM, certPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, err
	}
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	tmpl := selfSignedTemplate(commonName, validFor)
	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	return keyPEM, certPEM, nil
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func selfSignedTemplate(commonName string, validFor time.Duration) *x509.Certificate {
	now := time.Now()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		serial = big.NewInt(1)
	}
	return &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
}
