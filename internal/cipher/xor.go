package cipher

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// XOR implements the rolling XOR stream cipher used for in-game traffic
// once a session's handshake has completed:
//
//	encrypted[i] = raw[i] ^ outKey[i&0x0F] ^ encrypted[i-1]
//	decrypted[i] = encrypted[i] ^ inKey[i&0x0F] ^ encrypted[i-1]
//
// After each call the 4 key bytes at offset [8:12] (little-endian uint32)
// are advanced by the size of the data processed, so the key evolves packet
// to packet. The first Encrypt call is a no-op that only flips the enabled
// latch: the packet carrying the key itself is sent in the clear.
type XOR struct {
	inKey     [16]byte
	outKey    [16]byte
	isEnabled atomic.Bool
}

// NewXOR builds an XOR stream seeded with the same 16-byte key for both
// directions.
func NewXOR(key []byte) (*XOR, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("cipher: xor key must be at least 16 bytes, got %d", len(key))
	}
	x := &XOR{}
	copy(x.inKey[:], key[:16])
	copy(x.outKey[:], key[:16])
	return x, nil
}

func (x *XOR) Encrypt(data []byte) {
	if !x.isEnabled.Swap(true) {
		return
	}

	var prev byte
	for i := range data {
		prev = data[i] ^ x.outKey[i&0x0F] ^ prev
		data[i] = prev
	}
	shiftKey(x.outKey[:], len(data))
}

func (x *XOR) Decrypt(data []byte) {
	if !x.isEnabled.Load() {
		return
	}

	var prevCipher byte
	for i := range data {
		c := data[i]
		data[i] = c ^ x.inKey[i&0x0F] ^ prevCipher
		prevCipher = c
	}
	shiftKey(x.inKey[:], len(data))
}

func (x *XOR) Enabled() bool {
	return x.isEnabled.Load()
}

func shiftKey(key []byte, size int) {
	v := binary.LittleEndian.Uint32(key[8:12])
	v += uint32(size)
	binary.LittleEndian.PutUint32(key[8:12], v)
}
