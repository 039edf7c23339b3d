package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/forgenet/forgenet/internal/cipher"
)

// UDPHeaderSize is the fixed, unencrypted prefix every UDP datagram
// carries: an 8-byte session token used to resolve the sending endpoint to
// a session (token lookup first, endpoint lookup second — see
// internal/transport's NAT rebinding rules) and a 2-byte packet id.
const UDPHeaderSize = 10

// EncodeDatagram writes a UDP datagram into buf: token and id are left in
// the clear (a receiver needs them before it knows which session's cipher
// to use), the payload is encrypted in place.
func EncodeDatagram(buf []byte, stream cipher.Stream, token uint64, id uint16, payloadLen int) (int, error) {
	total := UDPHeaderSize + payloadLen
	if len(buf) < total {
		return 0, fmt.Errorf("wire: buffer too small for datagram (need %d, have %d)", total, len(buf))
	}

	stream.Encrypt(buf[UDPHeaderSize:total])

	binary.LittleEndian.PutUint64(buf[0:8], token)
	binary.LittleEndian.PutUint16(buf[8:10], id)
	return total, nil
}

// Datagram is a decoded UDP datagram. Payload aliases the buffer passed to
// DecodeDatagram.
type Datagram struct {
	Token   uint64
	ID      uint16
	Payload []byte
}

// DecodeDatagram parses a raw UDP datagram. The payload is left encrypted:
// a receiver must first resolve Token to a session (and its cipher) before
// it can decrypt in place.
func DecodeDatagram(raw []byte) (Datagram, error) {
	if len(raw) < UDPHeaderSize {
		return Datagram{}, fmt.Errorf("wire: datagram shorter than header (%d bytes)", len(raw))
	}
	return Datagram{
		Token:   binary.LittleEndian.Uint64(raw[0:8]),
		ID:      binary.LittleEndian.Uint16(raw[8:10]),
		Payload: raw[UDPHeaderSize:],
	}, nil
}
