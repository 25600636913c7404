// Package envelope implements spec §6's optional body encryption: a
// ChaCha20 keystream cipher over a message's body bits, keyed from a
// passphrase and seeded from the message's own (unencrypted) header
// bytes so encrypt/decrypt never need an out-of-band nonce. Grounded on
// golang.org/x/crypto/chacha20, one of the teacher's already-wired
// dependencies (the teacher used it for its own TLS/session-key
// material).
package envelope

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// Seal and Open are the same XOR-keystream operation: applying it twice
// with the same key and header recovers the original body.
type Cipher struct {
	passphrase []byte
}

// New returns a Cipher keyed from passphrase. An empty passphrase means
// "crypto disabled"; callers should check that before calling Seal/Open.
func New(passphrase []byte) *Cipher {
	return &Cipher{passphrase: passphrase}
}

// Enabled reports whether this Cipher has a usable passphrase.
func (c *Cipher) Enabled() bool { return len(c.passphrase) > 0 }

func (c *Cipher) key() [32]byte {
	return sha256.Sum256(c.passphrase)
}

// nonce derives a 12-byte ChaCha20 nonce from header, the message's
// unencrypted id+header bytes: zero-padded if header is shorter than
// chacha20.NonceSize, truncated if longer. Because the header is
// transmitted in the clear and is unique per message instance (it always
// carries the message id and typically a timestamp/sequence field), this
// avoids needing a separately transmitted nonce.
func nonce(header []byte) [chacha20.NonceSize]byte {
	var n [chacha20.NonceSize]byte
	copy(n[:], header)
	return n
}

// Seal XORs body with the ChaCha20 keystream derived from the passphrase
// and header, returning the result as a new slice.
func (c *Cipher) Seal(header, body []byte) ([]byte, error) {
	return c.crypt(header, body)
}

// Open reverses Seal; XOR is its own inverse, so this calls the same
// keystream operation.
func (c *Cipher) Open(header, body []byte) ([]byte, error) {
	return c.crypt(header, body)
}

func (c *Cipher) crypt(header, body []byte) ([]byte, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("envelope: no passphrase configured")
	}
	key := c.key()
	n := nonce(header)
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], n[:])
	if err != nil {
		return nil, fmt.Errorf("envelope: construct cipher: %w", err)
	}
	out := make([]byte, len(body))
	cipher.XORKeyStream(out, body)
	return out, nil
}
