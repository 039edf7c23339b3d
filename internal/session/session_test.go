package session

import (
	"net"
	"testing"

	"github.com/forgenet/forgenet/internal/cipher"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	pool := NewPool(2, 1, 4096, 16)
	s := pool.Acquire()
	require.NotNil(t, s)
	require.Equal(t, StatePooled, s.State())

	client, server := net.Pipe()
	defer client.Close()

	ok := s.Activate(server, cipher.NoneCipher{})
	require.True(t, ok)
	require.Equal(t, StateLive, s.State())

	require.False(t, s.CanDestroy())

	require.True(t, s.BeginDrain())
	require.Equal(t, StateDraining, s.State())

	s.MarkDead()
	require.Equal(t, StateDead, s.State())
	require.True(t, s.CanDestroy())

	// DecRef already ran inside MarkDead (owning ref released), so the
	// session should already be back on the free list.
	require.Equal(t, 1, pool.ApproximateFree())
}

func TestSessionIoRefDefersDestroy(t *testing.T) {
	pool := NewPool(1, 1, 4096, 16)
	s := pool.Acquire()
	client, server := net.Pipe()
	defer client.Close()
	s.Activate(server, cipher.NoneCipher{})

	s.AddRef() // simulate a message in flight on the dispatcher
	s.MarkDead()
	require.False(t, s.CanDestroy(), "outstanding ioRef must defer destruction")
	require.Equal(t, 0, pool.ApproximateFree())

	s.DecRef()
	require.True(t, s.CanDestroy())
	require.Equal(t, 1, pool.ApproximateFree())
}

func TestPoolRejectsPastMax(t *testing.T) {
	pool := NewPool(1, 1, 1024, 8)
	s1 := pool.Acquire()
	require.NotNil(t, s1)

	s2 := pool.Acquire()
	require.Nil(t, s2)
	require.EqualValues(t, 1, pool.RejectionCount())
}

func TestRecvBufferFrameAndCompact(t *testing.T) {
	rb := NewRecvBuffer(8)
	slot := rb.WriteSlot(5)
	n := copy(slot, []byte("hello"))
	rb.Advance(n)

	require.Equal(t, []byte("hello"), rb.Unread())
	rb.Consume(3)
	require.Equal(t, []byte("lo"), rb.Unread())

	rb.Compact()
	require.Equal(t, []byte("lo"), rb.Unread())
}
