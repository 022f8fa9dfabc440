package e2ee

import (
	"bytes"
	"testing"
)

func testKey(b byte) [KeySize]byte {
	var k [KeySize]byte
	for i := range k {
		k[i] = b
	}
	return k
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKey(0x42)
	plaintext := []byte(`{"type":"message","message":"hi"}`)
	frame, err := Seal(key, plaintext, 1, 2, 7)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	rec, err := Open(key, frame)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(rec.Plaintext, plaintext) {
		t.Fatalf("Plaintext = %q, want %q", rec.Plaintext, plaintext)
	}
	if !IDEquals(rec.SenderID, 1) || !IDEquals(rec.TargetID, 2) || rec.Seq != 7 {
		t.Fatalf("ids/seq mismatch: %+v", rec)
	}
}

func TestOpenRejectsShortFrame(t *testing.T) {
	if _, err := Open(testKey(1), make([]byte, headerSize-1)); err != ErrShortRecord {
		t.Fatalf("Open() error = %v, want ErrShortRecord", err)
	}
}

func TestOpenRejectsFlippedTag(t *testing.T) {
	key := testKey(9)
	frame, err := Seal(key, []byte("payload"), 1, 2, 1)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	frame[len(frame)-1] ^= 0xff
	if _, err := Open(key, frame); err != ErrAuth {
		t.Fatalf("Open() error = %v, want ErrAuth", err)
	}
}

func TestSealNoncesDiffer(t *testing.T) {
	key := testKey(3)
	a, err := Seal(key, []byte("x"), 1, 2, 1)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, err := Seal(key, []byte("x"), 1, 2, 1)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Equal(a[:nonceSize], b[:nonceSize]) {
		t.Fatalf("two seals produced the same nonce")
	}
}

func TestSealOpenWrongKeyFails(t *testing.T) {
	frame, err := Seal(testKey(1), []byte("x"), 1, 2, 1)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(testKey(2), frame); err != ErrAuth {
		t.Fatalf("Open() error = %v, want ErrAuth", err)
	}
}
