package timer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWheelFiresOnExpiry(t *testing.T) {
	w := newWheel()
	fired := false
	n := &node{id: 1, expiry: 3, fire: func() { fired = true }}
	w.add(n)

	for i := 0; i < 2; i++ {
		expired := w.advance()
		require.Empty(t, expired)
	}
	expired := w.advance()
	require.Len(t, expired, 1)
	require.Equal(t, uint64(1), expired[0].id)
	_ = fired
}

func TestWheelCascadesAcrossLevels(t *testing.T) {
	w := newWheel()
	// Expiry far enough out to land in tv2 (beyond the 256-slot near wheel).
	n := &node{id: 42, expiry: 300}
	w.add(n)
	require.Equal(t, 2, n.bucketTV)

	var firedAt uint64
	for i := 0; i < 400; i++ {
		expired := w.advance()
		for _, e := range expired {
			if e.id == 42 {
				firedAt = w.currentTick
			}
		}
	}
	require.Equal(t, uint64(300), firedAt)
}

func TestWheelSoftCancel(t *testing.T) {
	w := newWheel()
	n := &node{id: 5, expiry: 10}
	w.add(n)
	w.remove(n)
	require.True(t, n.cancelled)

	for i := 0; i < 10; i++ {
		expired := w.advance()
		for _, e := range expired {
			require.NotEqual(t, uint64(5), e.id, "cancelled node must not fire")
		}
	}
}

func TestWheelRemoveIsO1FromBucket(t *testing.T) {
	w := newWheel()
	n1 := &node{id: 1, expiry: 5}
	n2 := &node{id: 2, expiry: 5}
	w.add(n1)
	w.add(n2)
	w.remove(n1)

	var allExpired []*node
	for i := 0; i < 5; i++ {
		allExpired = append(allExpired, w.advance()...)
	}
	require.Len(t, allExpired, 1)
	require.Equal(t, uint64(2), allExpired[0].id)
}
