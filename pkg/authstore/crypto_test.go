package authstore

import (
	"bytes"
	"testing"
)

func TestCipherRoundTrip(t *testing.T) {
	c := NewCipher("secret-passphrase")
	blob, err := c.Seal([]byte("instance-token"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(blob, []byte("instance-token")) {
		t.Fatalf("ciphertext contains plaintext")
	}
	plain, err := c.Open(blob)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(plain) != "instance-token" {
		t.Fatalf("round trip got %q", plain)
	}
}

func TestCipherWrongKey(t *testing.T) {
	blob, err := NewCipher("key-a").Seal([]byte("x"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := NewCipher("key-b").Open(blob); err == nil {
		t.Fatalf("open with wrong key succeeded")
	}
}

func TestCipherRejectsTamperedBlob(t *testing.T) {
	c := NewCipher("key")
	blob, _ := c.Seal([]byte("x"))
	blob[len(blob)-1] ^= 0xff
	if _, err := c.Open(blob); err == nil {
		t.Fatalf("open of tampered blob succeeded")
	}
}

func TestCipherRejectsUnknownVersion(t *testing.T) {
	c := NewCipher("key")
	blob, _ := c.Seal([]byte("x"))
	blob[0] = 0x02
	if _, err := c.Open(blob); err == nil {
		t.Fatalf("open of unknown version succeeded")
	}
}

func TestNewCipherEmptyPassphrase(t *testing.T) {
	if c := NewCipher(""); c != nil {
		t.Fatalf("empty passphrase should disable encryption")
	}
}
