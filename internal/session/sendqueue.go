package session

import (
	"github.com/forgenet/forgenet/internal/netmsg"
)

// OutItem is one queued write. Either Raw is set (a one-off buffer this
// session alone owns, e.g. a handshake response) or Packet is set (a
// pool-backed packet this session shares an AddRef on with other
// recipients of the same broadcast). A writer goroutine must DecRef
// Packet once it has copied/encrypted its payload onto the wire; Raw needs
// no such cleanup.
type OutItem struct {
	Raw    []byte
	Packet *netmsg.Packet
}

// Payload returns the bytes to write, regardless of which form the item
// holds.
func (o OutItem) Payload() []byte {
	if o.Packet != nil {
		return o.Packet.Buf
	}
	return o.Raw
}

// Release must be called exactly once per item after it's been written.
func (o OutItem) Release() {
	if o.Packet != nil {
		o.Packet.DecRef()
	}
}

// SendQueue is a bounded outbound queue drained by a session's dedicated
// writer goroutine (internal/transport.RunWritePump). TryPush never
// blocks: a full queue means the peer is not draining fast enough and the
// caller (Session.Send) treats that as grounds to close the connection
// rather than let memory grow unbounded.
type SendQueue struct {
	ch chan OutItem
}

// NewSendQueue builds a SendQueue with room for capacity pending items.
func NewSendQueue(capacity int) *SendQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &SendQueue{ch: make(chan OutItem, capacity)}
}

// TryPush enqueues a session-owned buffer without blocking. Returns false
// if the queue is full.
func (q *SendQueue) TryPush(data []byte) bool {
	select {
	case q.ch <- OutItem{Raw: data}:
		return true
	default:
		return false
	}
}

// TryPushShared enqueues a reference to a pool-backed packet shared with
// other recipients of the same broadcast. The caller must already hold an
// AddRef for this enqueue; on failure (queue full) the caller is
// responsible for releasing that ref.
func (q *SendQueue) TryPushShared(pkt *netmsg.Packet) bool {
	select {
	case q.ch <- OutItem{Packet: pkt}:
		return true
	default:
		return false
	}
}

// DrainBatch pulls up to max queued items without blocking, for a writer
// goroutine to hand to net.Buffers.WriteTo in one writev syscall.
func (q *SendQueue) DrainBatch(max int) []OutItem {
	batch := make([]OutItem, 0, max)
	for len(batch) < max {
		select {
		case item := <-q.ch:
			batch = append(batch, item)
		default:
			return batch
		}
	}
	return batch
}

// Chan exposes the underlying channel for a writer goroutine's select
// loop (blocking receive when idle, plus a shutdown channel).
func (q *SendQueue) Chan() <-chan OutItem { return q.ch }

// Reset drains any buffered sends, releasing packet refs so a recycled
// session doesn't leak them.
func (q *SendQueue) Reset() {
	for {
		select {
		case item := <-q.ch:
			item.Release()
		default:
			return
		}
	}
}
