package cipher

import (
	"fmt"

	"golang.org/x/crypto/blowfish"
)

const blowfishBlockSize = 8

// Blowfish wraps ECB-mode Blowfish for the connect-handshake key exchange
// packet, the cipher a session is bootstrapped with before it switches to
// its in-game stream cipher (XOR or AES).
type Blowfish struct {
	enc *blowfish.Cipher
}

// NewBlowfish builds a Blowfish stream from a 1-56 byte key.
func NewBlowfish(key []byte) (*Blowfish, error) {
	c, err := blowfish.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: blowfish key: %w", err)
	}
	return &Blowfish{enc: c}, nil
}

// Encrypt encrypts data in place, one 8-byte ECB block at a time. Any
// trailing bytes shorter than a full block are left untouched — callers
// pad the handshake packet to a block multiple before calling, matching
// the wire format's own padding requirement.
func (b *Blowfish) Encrypt(data []byte) {
	for i := 0; i+blowfishBlockSize <= len(data); i += blowfishBlockSize {
		b.enc.Encrypt(data[i:i+blowfishBlockSize], data[i:i+blowfishBlockSize])
	}
}

func (b *Blowfish) Decrypt(data []byte) {
	for i := 0; i+blowfishBlockSize <= len(data); i += blowfishBlockSize {
		b.enc.Decrypt(data[i:i+blowfishBlockSize], data[i:i+blowfishBlockSize])
	}
}

func (b *Blowfish) Enabled() bool { return true }
