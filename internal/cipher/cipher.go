// Package cipher provides the pluggable per-session stream cipher used by
// the transport layer. All implementations operate on contiguous bytes
// in place, without changing length.
package cipher

// Stream encrypts and decrypts a session's byte stream in place.
type Stream interface {
	// Encrypt transforms data in place from plaintext to ciphertext.
	Encrypt(data []byte)
	// Decrypt transforms data in place from ciphertext to plaintext.
	Decrypt(data []byte)
	// Enabled reports whether the cipher has been activated. A freshly
	// constructed stream may be disabled until a key exchange completes.
	Enabled() bool
}

// Kind selects a Stream implementation from configuration.
type Kind string

const (
	KindNone     Kind = "none"
	KindXOR      Kind = "xor"
	KindAES      Kind = "aes"
	KindBlowfish Kind = "blowfish"
)

// New constructs a Stream for the given kind and key material.
// key must be at least 16 bytes for xor/blowfish, 16/24/32 for aes.
func New(kind Kind, key []byte) (Stream, error) {
	switch kind {
	case "", KindNone:
		return NoneCipher{}, nil
	case KindXOR:
		return NewXOR(key)
	case KindAES:
		return NewAES(key)
	case KindBlowfish:
		return NewBlowfish(key)
	default:
		return nil, &UnknownKindError{Kind: kind}
	}
}

// UnknownKindError is returned by New for an unrecognized Kind.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return "cipher: unknown kind " + string(e.Kind)
}

// NoneCipher is the no-op passthrough cipher.
type NoneCipher struct{}

func (NoneCipher) Encrypt([]byte) {}
func (NoneCipher) Decrypt([]byte) {}
func (NoneCipher) Enabled() bool  { return true }
