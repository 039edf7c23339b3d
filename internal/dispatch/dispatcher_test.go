package dispatch

import (
	"sync"
	"testing"

	"github.com/forgenet/forgenet/internal/netmsg"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id      uint64
	dead    bool
	decRefs int
}

func (f *fakeSession) DecRef()         { f.decRefs++ }
func (f *fakeSession) ID() uint64      { return f.id }
func (f *fakeSession) CanDestroy() bool { return f.dead }

type recordingHandler struct {
	mu       sync.Mutex
	received [][]byte
	connects []uint64
	disconnects []uint64
}

func (h *recordingHandler) HandlePacket(s netmsg.SessionRef, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, append([]byte(nil), payload...))
	return nil
}
func (h *recordingHandler) OnSessionConnect(s netmsg.SessionRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connects = append(h.connects, s.ID())
}
func (h *recordingHandler) OnSessionDisconnect(s netmsg.SessionRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnects = append(h.disconnects, s.ID())
}

func TestDispatcherFIFOPerProducer(t *testing.T) {
	h := &recordingHandler{}
	d := New(h, nil)
	pool := netmsg.NewPool(1, 16)

	sess := &fakeSession{id: 1}
	for i := 0; i < 5; i++ {
		pkt := pool.Get(netmsg.TagNetworkData)
		pkt.Session = sess
		sess.decRefs = 0 // packet holds its own accounting; ignore for this test
		pkt.Buf = append(pkt.Buf, byte('a'+i))
		d.Post(pkt)
	}

	require.EqualValues(t, 5, d.Depth())
	n := d.Process()
	require.Equal(t, 5, n)
	require.Len(t, h.received, 5)
	for i, b := range h.received {
		require.Equal(t, []byte{byte('a' + i)}, b)
	}
}

func TestDispatcherPendingDestroySweep(t *testing.T) {
	h := &recordingHandler{}
	d := New(h, nil)
	pool := netmsg.NewPool(1, 16)

	sess := &fakeSession{id: 7, dead: false}
	pkt := pool.Get(netmsg.TagNetworkDisconnect)
	pkt.Session = sess
	d.Post(pkt)
	d.Process()

	require.Equal(t, 1, d.PendingDestroyCount())

	sess.dead = true
	d.Process() // Process always sweeps even with an empty queue pass... but queue is empty so n==0
	require.Equal(t, 0, d.PendingDestroyCount())
}

func TestDispatcherOverloadHysteresis(t *testing.T) {
	h := &recordingHandler{}
	d := New(h, nil)
	pool := netmsg.NewPool(1, HighWater+100)

	for i := 0; i < HighWater; i++ {
		pkt := pool.Get(netmsg.TagNetworkData)
		pkt.Session = &fakeSession{id: 1}
		d.Post(pkt)
	}
	require.True(t, d.IsOverloaded())

	for d.Depth() > LowWater {
		d.Process()
	}
	require.True(t, d.IsRecovered())
}

func TestLambdaJobRunsAndSkipsHandler(t *testing.T) {
	h := &recordingHandler{}
	d := New(h, nil)

	ran := false
	d.Push(func() { ran = true })
	n := d.Process()
	require.Equal(t, 1, n)
	require.True(t, ran)
	require.Empty(t, h.received)
}
