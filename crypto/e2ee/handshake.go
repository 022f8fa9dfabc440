package e2ee

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/floegence/chatrelay/fserrors"
	"github.com/floegence/chatrelay/framing"
)

// TranscriptMode documents which variant of the handshake transcript this
// implementation signs. The open question in the design notes is that
// binding only the client's ephemeral public key (and not the server's)
// leaves a gap between "transcript" and "signed payload": data_to_sign
// already folds in pk_S_pem, client_id, and salt, so the residual gap is
// cosmetic for this two-party topology. TranscriptMode stays a named
// constant so switching to the stronger
// transcript = pk_C_pem || pk_S_pem || client_id || salt
// is a one-line, both-sides-consistent change.
const TranscriptMode = "pk_C_pem"

const (
	msgTypeHello             = "hello"
	msgTypeHandshakeResponse = "handshake_response"
)

// HelloMessage is the first frame a client sends: its display name and
// ephemeral ECDH public key.
type HelloMessage struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	PublicKey string `json:"public_key"`
}

// HandshakeResponse is the relay's reply: the assigned client id, its own
// ephemeral public key, the HKDF salt, the transcript signature, and its
// pinned certificate.
type HandshakeResponse struct {
	Type      string `json:"type"`
	ClientID  uint64 `json:"client_id"`
	PublicKey string `json:"public_key"`
	Salt      string `json:"salt"`
	Signature string `json:"signature"`
	Cert      string `json:"cert"`
}

// ErrBadHello is returned when the client's hello frame fails validation.
var ErrBadHello = errors.New("e2ee: malformed hello message")

// ErrBadResponse is returned when the server's handshake_response fails to
// parse.
var ErrBadResponse = errors.New("e2ee: malformed handshake response")

func dataToSign(serverPubPEM []byte, clientID uint64, transcript, salt []byte) []byte {
	idBytes := []byte(strconv.FormatUint(clientID, 10))
	out := make([]byte, 0, len(serverPubPEM)+len(idBytes)+len(transcript)+len(salt))
	out = append(out, serverPubPEM...)
	out = append(out, idBytes...)
	out = append(out, transcript...)
	out = append(out, salt...)
	return out
}

// ServerHandshakeResult is what the relay learns once a handshake
// completes successfully.
type ServerHandshakeResult struct {
	DisplayName string
	Keys        SessionKeyPair
}

// ServerHandshake consumes the client's hello frame and sends back a signed
// handshake_response, deriving the session's directional keys. clientID must
// already be allocated by the caller (the relay's monotonic counter) before
// this is called, since it is bound into the signed payload (data_to_sign).
func ServerHandshake(rw io.ReadWriter, identity *ServerIdentity, clientID uint64, maxFrame int) (ServerHandshakeResult, error) {
	raw, err := framing.ReadFrame(rw, maxFrame)
	if err != nil {
		return ServerHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindTransport, err)
	}
	// encoding/json replaces invalid UTF-8 with U+FFFD while decoding, so an
	// invalid name is only detectable on the raw frame bytes.
	if !utf8.Valid(raw) {
		return ServerHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindProtocol, ErrBadHello)
	}
	var hello HelloMessage
	if err := json.Unmarshal(raw, &hello); err != nil {
		return ServerHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindProtocol, ErrBadHello)
	}
	if hello.Type != msgTypeHello || hello.PublicKey == "" {
		return ServerHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindProtocol, ErrBadHello)
	}
	if !utf8.ValidString(hello.Name) {
		return ServerHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindProtocol, ErrBadHello)
	}
	clientPubPEM := []byte(hello.PublicKey)
	// Reject an unparseable key before anything is signed or sent, so a
	// malformed hello never sees a handshake_response.
	if _, err := parseECDHPublicKey(clientPubPEM); err != nil {
		return ServerHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindCrypto, err)
	}

	skS, pkSPEM, err := GenerateEphemeralKeypair()
	if err != nil {
		return ServerHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindCrypto, err)
	}
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return ServerHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindCrypto, err)
	}

	transcript := clientPubPEM
	signed := dataToSign(pkSPEM, clientID, transcript, salt)
	sig, err := identity.Sign(signed)
	if err != nil {
		return ServerHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindCrypto, err)
	}

	resp := HandshakeResponse{
		Type:      msgTypeHandshakeResponse,
		ClientID:  clientID,
		PublicKey: string(pkSPEM),
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Signature: base64.StdEncoding.EncodeToString(sig),
		Cert:      string(identity.CertPEM),
	}
	if err := framing.WriteJSON(rw, resp); err != nil {
		return ServerHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindTransport, err)
	}

	shared, err := Agree(skS, clientPubPEM)
	if err != nil {
		return ServerHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindCrypto, err)
	}
	keys, err := DeriveKeys(shared, salt)
	if err != nil {
		return ServerHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindCrypto, err)
	}

	return ServerHandshakeResult{DisplayName: hello.Name, Keys: keys}, nil
}

// ClientHandshakeResult is what a client learns once a handshake completes
// successfully.
type ClientHandshakeResult struct {
	ClientID uint64
	Keys     SessionKeyPair
}

// ClientHandshake sends a hello frame carrying displayName and a fresh
// ephemeral keypair, then verifies the server's signed response against
// trustedCertPEM (the certificate pinned at client startup) before deriving
// session keys. A signature failure is fatal: no keys are returned and the
// caller must treat the connection as unusable.
func ClientHandshake(rw io.ReadWriter, trustedCertPEM []byte, displayName string, maxFrame int) (ClientHandshakeResult, error) {
	skC, pkCPEM, err := GenerateEphemeralKeypair()
	if err != nil {
		return ClientHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindCrypto, err)
	}
	hello := HelloMessage{Type: msgTypeHello, Name: displayName, PublicKey: string(pkCPEM)}
	if err := framing.WriteJSON(rw, hello); err != nil {
		return ClientHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindTransport, err)
	}

	raw, err := framing.ReadFrame(rw, maxFrame)
	if err != nil {
		return ClientHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindTransport, err)
	}
	var resp HandshakeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ClientHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindProtocol, ErrBadResponse)
	}
	if resp.Type != msgTypeHandshakeResponse || resp.PublicKey == "" {
		return ClientHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindProtocol, ErrBadResponse)
	}
	salt, err := base64.StdEncoding.DecodeString(resp.Salt)
	if err != nil || len(salt) != SaltSize {
		return ClientHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindProtocol, ErrBadResponse)
	}
	sig, err := base64.StdEncoding.DecodeString(resp.Signature)
	if err != nil {
		return ClientHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindProtocol, ErrBadResponse)
	}

	serverPubPEM := []byte(resp.PublicKey)
	transcript := pkCPEM
	signed := dataToSign(serverPubPEM, resp.ClientID, transcript, salt)
	if err := VerifyWithCert(trustedCertPEM, signed, sig); err != nil {
		return ClientHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindCrypto, err)
	}

	shared, err := Agree(skC, serverPubPEM)
	if err != nil {
		return ClientHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindCrypto, err)
	}
	keys, err := DeriveKeys(shared, salt)
	if err != nil {
		return ClientHandshakeResult{}, fserrors.Wrap(fserrors.StageHandshake, fserrors.KindCrypto, err)
	}

	return ClientHandshakeResult{ClientID: resp.ClientID, Keys: keys}, nil
}
