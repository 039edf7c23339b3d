package kcp

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInOrderDeliveryOnLosslessLink(t *testing.T) {
	var mu sync.Mutex
	var received [][]byte

	var sender, receiver *ARQ
	receiver = New(8, 8, func(seg []byte) { sender.Ingest(seg, func([]byte) {}) })
	sender = New(8, 8, func(seg []byte) {
		receiver.Ingest(seg, func(payload []byte) {
			mu.Lock()
			received = append(received, append([]byte(nil), payload...))
			mu.Unlock()
		})
	})

	sender.Send([]byte("one"))
	sender.Send([]byte("two"))
	sender.Send([]byte("three"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 3)
	require.Equal(t, []byte("one"), received[0])
	require.Equal(t, []byte("two"), received[1])
	require.Equal(t, []byte("three"), received[2])
}

func TestOutOfOrderArrivalReordersBeforeDelivery(t *testing.T) {
	var mu sync.Mutex
	var received [][]byte

	receiver := New(8, 8, func([]byte) {})
	deliver := func(payload []byte) {
		mu.Lock()
		received = append(received, append([]byte(nil), payload...))
		mu.Unlock()
	}

	seg0 := encodeData(0, []byte("a"))
	seg1 := encodeData(1, []byte("b"))
	seg2 := encodeData(2, []byte("c"))

	// Arrive out of order: 2, 0, 1.
	receiver.Ingest(seg2, deliver)
	mu.Lock()
	require.Empty(t, received, "seq 2 must wait for 0 and 1")
	mu.Unlock()

	receiver.Ingest(seg0, deliver)
	receiver.Ingest(seg1, deliver)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, received)
}

func TestOversizePayloadDroppedAndCounted(t *testing.T) {
	a := New(4, 4, func([]byte) {})
	oversized := make([]byte, MaxSegment+1)
	a.Send(oversized)
	require.Equal(t, 1, a.Stats().OversizeDropped)
}

func TestUpdateRetransmitsUnackedSegmentAfterTimeout(t *testing.T) {
	var mu sync.Mutex
	var outputs [][]byte
	a := New(4, 4, func(seg []byte) {
		mu.Lock()
		outputs = append(outputs, seg)
		mu.Unlock()
	})

	a.Send([]byte("payload"))
	mu.Lock()
	require.Len(t, outputs, 1, "Send transmits immediately")
	mu.Unlock()

	// Force the segment's rto to have already elapsed.
	a.mu.Lock()
	a.sendBuf[0].sentAt = time.Now().Add(-baseRTO * 2)
	a.mu.Unlock()

	a.Update(time.Now())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, outputs, 2, "Update must retransmit the timed-out segment")
	require.Equal(t, 1, a.Stats().Retransmits)
}

func TestCumulativeAckClearsSendBuffer(t *testing.T) {
	a := New(4, 4, func([]byte) {})
	a.Send([]byte("one"))
	a.Send([]byte("two"))
	a.Send([]byte("three"))
	require.Len(t, a.sendBuf, 3)

	a.HandleAck(2) // acks seq 0 and 1, leaves seq 2 outstanding
	require.Len(t, a.sendBuf, 1)
	require.Equal(t, uint32(2), a.sendBuf[0].seq)
}
