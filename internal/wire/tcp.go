// Package wire implements the TCP and UDP framing this server's sessions
// speak: a length-prefixed envelope carrying a packet id and an
// encrypted-in-place payload.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/forgenet/forgenet/internal/cipher"
)

// HeaderSize is the fixed envelope prefix: a 2-byte little-endian total
// length followed by a 2-byte little-endian packet id.
const HeaderSize = 4

// WriteFrame encrypts payload in place (it must already sit at
// buf[HeaderSize:HeaderSize+len(payload)]) and writes the framed packet to
// w: {uint16 size, uint16 id, payload}, where size counts the whole frame
// including the header.
func WriteFrame(w io.Writer, stream cipher.Stream, id uint16, buf []byte, payloadLen int) error {
	if len(buf) < HeaderSize+payloadLen {
		return fmt.Errorf("wire: buffer too small for frame (need %d, have %d)", HeaderSize+payloadLen, len(buf))
	}

	stream.Encrypt(buf[HeaderSize : HeaderSize+payloadLen])

	total := HeaderSize + payloadLen
	binary.LittleEndian.PutUint16(buf[0:2], uint16(total))
	binary.LittleEndian.PutUint16(buf[2:4], id)

	if _, err := w.Write(buf[:total]); err != nil {
		return fmt.Errorf("wire: writing frame: %w", err)
	}
	return nil
}

// Frame is a decoded, decrypted TCP frame.
type Frame struct {
	ID      uint16
	Payload []byte
}

// TryReadFrame attempts to peel one complete frame off the front of data
// without blocking: it returns ok=false if data doesn't yet hold a whole
// frame, leaving data untouched so the caller can append more bytes and
// retry. On success it decrypts the payload in place (aliasing data — the
// caller must copy it out before the backing array is reused/compacted)
// and reports how many bytes to consume.
func TryReadFrame(data []byte, stream cipher.Stream) (frame Frame, consumed int, ok bool) {
	if len(data) < HeaderSize {
		return Frame{}, 0, false
	}
	total := int(binary.LittleEndian.Uint16(data[0:2]))
	if total < HeaderSize {
		return Frame{}, 0, false
	}
	if len(data) < total {
		return Frame{}, 0, false
	}

	id := binary.LittleEndian.Uint16(data[2:4])
	payload := data[HeaderSize:total]
	stream.Decrypt(payload)

	return Frame{ID: id, Payload: payload}, total, true
}

// ReadFrame reads one frame from r into scratch, decrypts its payload in
// place, and returns the decoded id and payload slice (aliasing scratch —
// callers that need to retain it across the next ReadFrame call must
// copy).
func ReadFrame(r io.Reader, stream cipher.Stream, scratch []byte) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:2]); err != nil {
		return Frame{}, fmt.Errorf("wire: reading frame length: %w", err)
	}
	total := int(binary.LittleEndian.Uint16(header[:2]))
	if total < HeaderSize {
		return Frame{}, fmt.Errorf("wire: invalid frame length %d", total)
	}

	rest := total - 2
	if rest > len(scratch) {
		return Frame{}, fmt.Errorf("wire: frame %d exceeds scratch buffer %d", total, len(scratch))
	}
	if _, err := io.ReadFull(r, scratch[:rest]); err != nil {
		return Frame{}, fmt.Errorf("wire: reading frame body: %w", err)
	}

	id := binary.LittleEndian.Uint16(scratch[:2])
	payload := scratch[2:rest]
	stream.Decrypt(payload)

	return Frame{ID: id, Payload: payload}, nil
}
