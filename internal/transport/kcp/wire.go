package kcp

import "encoding/binary"

// Segment kinds, the first byte of every ARQ-framed segment.
const (
	kindData byte = iota
	kindAck
)

// encodeData frames a data segment: {kind:1, seq:4, payload}.
func encodeData(seq uint32, payload []byte) []byte {
	buf := make([]byte, 5+len(payload))
	buf[0] = kindData
	binary.LittleEndian.PutUint32(buf[1:5], seq)
	copy(buf[5:], payload)
	return buf
}

// encodeAck frames a cumulative ACK: {kind:1, ack:4}.
func encodeAck(ack uint32) []byte {
	buf := make([]byte, 5)
	buf[0] = kindAck
	binary.LittleEndian.PutUint32(buf[1:5], ack)
	return buf
}

// Segment is a decoded ARQ frame: either a data segment (IsAck false, Seq
// + Payload meaningful) or an ACK (IsAck true, Ack meaningful).
type Segment struct {
	IsAck   bool
	Seq     uint32
	Ack     uint32
	Payload []byte
}

// Decode parses one ARQ-framed segment. Payload aliases raw.
func Decode(raw []byte) (Segment, bool) {
	if len(raw) < 5 {
		return Segment{}, false
	}
	switch raw[0] {
	case kindData:
		return Segment{Seq: binary.LittleEndian.Uint32(raw[1:5]), Payload: raw[5:]}, true
	case kindAck:
		return Segment{IsAck: true, Ack: binary.LittleEndian.Uint32(raw[1:5])}, true
	default:
		return Segment{}, false
	}
}
