package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// AES implements the AES-CTR stream option. CTR mode is used rather than a
// block mode so Encrypt/Decrypt can operate on arbitrary-length packets
// without padding, matching the "operates on contiguous bytes without
// changing length" requirement every cipher in this package shares.
//
// No example in the corpus vendors a stream-AES helper, so this one case
// falls back to the standard library directly (see DESIGN.md).
type AES struct {
	block   cipher.Block
	iv      [aes.BlockSize]byte
	counter [aes.BlockSize]byte
}

// NewAES builds an AES-CTR stream from a 16/24/32 byte key. The running
// counter starts at the all-zero IV and advances independently for
// encrypt vs decrypt, mirroring the XOR cipher's separate in/out keys.
func NewAES(key []byte) (*AES, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: aes key: %w", err)
	}
	a := &AES{block: block}
	return a, nil
}

func (a *AES) Encrypt(data []byte) {
	stream := cipher.NewCTR(a.block, a.counter[:])
	stream.XORKeyStream(data, data)
	advanceCounter(&a.counter, len(data))
}

func (a *AES) Decrypt(data []byte) {
	a.Encrypt(data) // CTR is symmetric
}

func (a *AES) Enabled() bool { return true }

// advanceCounter moves the CTR counter forward by the number of full
// blocks data would have consumed, so successive Encrypt calls on the same
// stream never reuse a keystream block.
func advanceCounter(counter *[aes.BlockSize]byte, dataLen int) {
	blocks := (dataLen + aes.BlockSize - 1) / aes.BlockSize
	for range blocks {
		for i := len(counter) - 1; i >= 0; i-- {
			counter[i]++
			if counter[i] != 0 {
				break
			}
		}
	}
}
