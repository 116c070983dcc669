// pkg/authstore/crypto.go
package authstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// Cipher encrypts instance tokens at rest. A nil Cipher stores plaintext.
type Cipher struct {
	key [32]byte
}

// NewCipher derives an AES-256-GCM cipher from a passphrase. Empty
// passphrase disables encryption.
func NewCipher(passphrase string) *Cipher {
	if passphrase == "" {
		return nil
	}
	return &Cipher{key: sha256.Sum256([]byte(passphrase))}
}

// Seal encrypts plain into a versioned blob: 0x01 | nonce | ciphertext.
func (c *Cipher) Seal(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, plain, nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = 0x01
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return out, nil
}

// Open reverses Seal.
func (c *Cipher) Open(blob []byte) ([]byte, error) {
	if len(blob) < 2 {
		return nil, fmt.Errorf("invalid blob")
	}
	if blob[0] != 0x01 {
		return nil, fmt.Errorf("unsupported version")
	}
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(blob) < 1+gcm.NonceSize() {
		return nil, fmt.Errorf("short nonce")
	}
	nonce := blob[1 : 1+gcm.NonceSize()]
	ct := blob[1+gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}
