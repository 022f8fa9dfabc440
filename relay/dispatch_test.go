package relay

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/floegence/chatrelay/crypto/e2ee"
	"github.com/floegence/chatrelay/framing"
)

func zeroKeys() e2ee.SessionKeyPair {
	return e2ee.SessionKeyPair{}
}

func keyPairFor(b byte) e2ee.SessionKeyPair {
	var kp e2ee.SessionKeyPair
	for i := range kp.C2S {
		kp.C2S[i] = b
		kp.S2C[i] = b ^ 0xff
	}
	return kp
}

// testClient wires a net.Pipe between a Session (server-held) and a test
// harness standing in for the client's own socket end.
type testClient struct {
	sess       *Session
	clientConn net.Conn
	keys       e2ee.SessionKeyPair
}

func newTestClient(id uint64, name string, b byte) *testClient {
	serverConn, clientConn := net.Pipe()
	keys := keyPairFor(b)
	return &testClient{
		sess:       NewSession(id, name, serverConn, keys),
		clientConn: clientConn,
		keys:       keys,
	}
}

func (tc *testClient) readFrame() func() ([]byte, error) {
	conn := tc.sess.readConn()
	return func() ([]byte, error) {
		return framing.ReadFrame(conn, framing.DefaultMaxFrameBytes)
	}
}

// readConn exposes the session's underlying conn for tests only; relay
// package code never needs read access, since the receive loop owns a
// separate reader passed into RunSession.
func (s *Session) readConn() net.Conn {
	return s.conn.(net.Conn)
}

func (tc *testClient) sendPlaintext(t *testing.T, targetID uint64, seq uint64, payload any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	frame, err := e2ee.Seal(tc.keys.C2S, body, tc.sess.ClientID, targetID, seq)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := framing.WriteFrame(tc.clientConn, frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
}

func (tc *testClient) recvPlaintext(t *testing.T) e2ee.Record {
	t.Helper()
	frame, err := framing.ReadFrame(tc.clientConn, framing.DefaultMaxFrameBytes)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	rec, err := e2ee.Open(tc.keys.S2C, frame)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return rec
}

func TestDispatchDirectedMessage(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry, nil)

	a := newTestClient(1, "A", 0x01)
	b := newTestClient(2, "B", 0x02)

	done := make(chan error, 2)
	go func() { done <- d.RunSession(a.sess, a.readFrame()) }()
	go func() { done <- d.RunSession(b.sess, b.readFrame()) }()

	// Give both sessions a moment to register before routing.
	time.Sleep(10 * time.Millisecond)

	a.sendPlaintext(t, 2, 1, SendMessageIn{Type: TypeSendMessage, TargetID: 2, Message: "hello"})

	rec := b.recvPlaintext(t)
	var out MessageOut
	if err := json.Unmarshal(rec.Plaintext, &out); err != nil {
		t.Fatalf("unmarshal MessageOut: %v", err)
	}
	if out.Type != TypeMessage || out.FromID != 1 || out.FromName != "A" || out.Message != "hello" {
		t.Fatalf("MessageOut = %+v, want from_id=1 from_name=A message=hello", out)
	}
	if !e2ee.IDEquals(rec.SenderID, 1) {
		t.Fatalf("outbound AAD sender_id mismatch: %v", rec.SenderID)
	}
	if rec.Seq != 1 {
		t.Fatalf("Seq = %d, want 1", rec.Seq)
	}

	a.clientConn.Close()
	b.clientConn.Close()
	<-done
	<-done
}

func TestDispatchUnknownTargetRepliesWithoutClosing(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry, nil)
	a := newTestClient(1, "A", 0x03)

	done := make(chan error, 1)
	go func() { done <- d.RunSession(a.sess, a.readFrame()) }()
	time.Sleep(10 * time.Millisecond)

	a.sendPlaintext(t, 999, 1, SendMessageIn{Type: TypeSendMessage, TargetID: 999, Message: "hi"})

	rec := a.recvPlaintext(t)
	var out ErrorOut
	if err := json.Unmarshal(rec.Plaintext, &out); err != nil {
		t.Fatalf("unmarshal ErrorOut: %v", err)
	}
	if out.Type != TypeError {
		t.Fatalf("Type = %q, want error", out.Type)
	}

	// Session must remain open: a second, valid request still succeeds.
	a.sendPlaintext(t, 0, 2, GetOnlineClientsIn{Type: TypeGetOnlineClients})
	rec2 := a.recvPlaintext(t)
	var dir OnlineClientsOut
	if err := json.Unmarshal(rec2.Plaintext, &dir); err != nil {
		t.Fatalf("unmarshal OnlineClientsOut: %v", err)
	}
	if dir.Type != TypeOnlineClients {
		t.Fatalf("Type = %q, want online_clients", dir.Type)
	}

	a.clientConn.Close()
	<-done
}

func TestDispatchReplayRejectionClosesSession(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry, nil)
	a := newTestClient(1, "A", 0x04)

	done := make(chan error, 1)
	go func() { done <- d.RunSession(a.sess, a.readFrame()) }()
	time.Sleep(10 * time.Millisecond)

	frame, err := e2ee.Seal(a.keys.C2S, mustJSON(t, GetOnlineClientsIn{Type: TypeGetOnlineClients}), 1, 0, 1)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := framing.WriteFrame(a.clientConn, frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	_ = a.recvPlaintext(t) // directory reply for seq=1

	// Replay the exact same frame: seq=1 is no longer > seq_recv.
	if err := framing.WriteFrame(a.clientConn, frame); err != nil {
		t.Fatalf("WriteFrame (replay): %v", err)
	}

	err = <-done
	if err == nil {
		t.Fatalf("RunSession() = nil, want replay rejection error")
	}
	if registry.Lookup(1) != nil {
		t.Fatalf("session still registered after replay rejection")
	}
}

func TestDispatchDirectoryExcludesSelf(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry, nil)
	a := newTestClient(1, "A", 0x05)
	b := newTestClient(2, "B", 0x06)

	doneA := make(chan error, 1)
	doneB := make(chan error, 1)
	go func() { doneA <- d.RunSession(a.sess, a.readFrame()) }()
	go func() { doneB <- d.RunSession(b.sess, b.readFrame()) }()
	time.Sleep(10 * time.Millisecond)

	a.sendPlaintext(t, 0, 1, GetOnlineClientsIn{Type: TypeGetOnlineClients})
	rec := a.recvPlaintext(t)
	var dir OnlineClientsOut
	if err := json.Unmarshal(rec.Plaintext, &dir); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(dir.Clients) != 1 || dir.Clients[0].ID != 2 || dir.Clients[0].Name != "B" {
		t.Fatalf("Clients = %+v, want [{2 B}]", dir.Clients)
	}

	a.clientConn.Close()
	b.clientConn.Close()
	<-doneA
	<-doneB
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
