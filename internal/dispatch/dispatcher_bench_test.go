package dispatch

import (
	"testing"

	"github.com/forgenet/forgenet/internal/netmsg"
)

// BenchmarkDispatcherProcess measures Post+Process throughput for a single
// producer draining its own queue in batches of batchSize.
func BenchmarkDispatcherProcess(b *testing.B) {
	h := &recordingHandler{}
	d := New(h, nil)
	pool := netmsg.NewPool(4, 4096)
	sess := &fakeSession{id: 1}

	b.ReportAllocs()
	b.ResetTimer()

	for range b.N {
		pkt := pool.Get(netmsg.TagNetworkData)
		pkt.Session = sess
		pkt.Buf = append(pkt.Buf, 'x')
		d.Post(pkt)
		d.Process()
	}
}

// BenchmarkDispatcherProcessBatch measures Process draining a full
// batchSize queue in one call, the steady-state shape under load.
func BenchmarkDispatcherProcessBatch(b *testing.B) {
	h := &recordingHandler{}
	d := New(h, nil)
	pool := netmsg.NewPool(4, 4096)
	sess := &fakeSession{id: 1}

	b.ReportAllocs()
	b.ResetTimer()

	for range b.N {
		b.StopTimer()
		for range batchSize {
			pkt := pool.Get(netmsg.TagNetworkData)
			pkt.Session = sess
			pkt.Buf = append(pkt.Buf, 'x')
			d.Post(pkt)
		}
		b.StartTimer()

		d.Process()
	}
}
