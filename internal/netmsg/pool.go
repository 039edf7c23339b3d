package netmsg

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Fixed-block sizing and cache thresholds, ported from the original
// message pool this package generalizes: one shared block size for every
// packet regardless of payload, a bounded per-shard cache sized to absorb
// a tick's worth of churn without hitting the shared pool, and a bulk
// transfer count so a shard refills/drains in batches rather than one
// message at a time.
const (
	MaxPacketBodySize = 4096
	l1CacheSize       = 1000
	bulkTransferCount = 500
)

// Pool is a fixed-block packet pool with a sharded local-cache tier (one
// LIFO stack per shard, standing in for a real thread-local cache — Go
// gives no cheap way to pin a cache to an OS thread, so shards approximate
// it) backed by a shared overflow channel. Get/free move blocks between
// tiers in batches of bulkTransferCount, the same way the pool this is
// grounded on moves its thread-local cache in and out of the global queue.
type Pool struct {
	shards   []shard
	overflow chan *Packet

	created  atomic.Int64
	reused   atomic.Int64
	shardSel atomic.Uint64
}

type shard struct {
	mu    sync.Mutex
	items []*Packet
}

// NewPool builds a Pool with shardCount local caches (0 picks
// runtime.GOMAXPROCS(0)) and an overflow channel holding up to
// overflowCapacity blocks before new allocations happen directly.
func NewPool(shardCount, overflowCapacity int) *Pool {
	if shardCount <= 0 {
		shardCount = runtime.GOMAXPROCS(0)
	}
	if overflowCapacity <= 0 {
		overflowCapacity = l1CacheSize * 4
	}
	p := &Pool{
		shards:   make([]shard, shardCount),
		overflow: make(chan *Packet, overflowCapacity),
	}
	return p
}

// Get acquires a packet for tag, reusing a pooled block when one is
// available and allocating a fresh MaxPacketBodySize block otherwise.
func (p *Pool) Get(tag Tag) *Packet {
	s := &p.shards[p.shardSel.Add(1)%uint64(len(p.shards))]

	s.mu.Lock()
	if n := len(s.items); n > 0 {
		pkt := s.items[n-1]
		s.items = s.items[:n-1]
		s.mu.Unlock()
		p.reused.Add(1)
		return resetPacket(pkt, tag)
	}
	s.mu.Unlock()

	// Shard empty: try to refill from the shared overflow in bulk before
	// falling back to allocation, so the next bulkTransferCount Gets on
	// this shard hit the fast path.
	p.refill(s)

	s.mu.Lock()
	if n := len(s.items); n > 0 {
		pkt := s.items[n-1]
		s.items = s.items[:n-1]
		s.mu.Unlock()
		p.reused.Add(1)
		return resetPacket(pkt, tag)
	}
	s.mu.Unlock()

	p.created.Add(1)
	return resetPacket(&Packet{Buf: make([]byte, 0, MaxPacketBodySize), pool: p}, tag)
}

func (p *Pool) refill(s *shard) {
	batch := make([]*Packet, 0, bulkTransferCount)
drain:
	for len(batch) < bulkTransferCount {
		select {
		case pkt := <-p.overflow:
			batch = append(batch, pkt)
		default:
			break drain
		}
	}
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	s.items = append(s.items, batch...)
	s.mu.Unlock()
}

func resetPacket(pkt *Packet, tag Tag) *Packet {
	pkt.Tag = tag
	pkt.ID = 0
	pkt.Session = nil
	pkt.Job = nil
	pkt.Buf = pkt.Buf[:0]
	pkt.refs.Store(1)
	return pkt
}

// free returns pkt to its pool, pushing half the local shard to the shared
// overflow when the shard grows past l1CacheSize so no single shard can
// hoard every free block.
func (p *Pool) free(pkt *Packet) {
	s := &p.shards[p.shardSel.Add(1)%uint64(len(p.shards))]

	s.mu.Lock()
	s.items = append(s.items, pkt)
	if len(s.items) > l1CacheSize {
		spill := s.items[:bulkTransferCount]
		s.items = s.items[bulkTransferCount:]
		s.mu.Unlock()
		for _, item := range spill {
			select {
			case p.overflow <- item:
			default:
				// overflow full: drop the block, GC reclaims it.
			}
		}
		return
	}
	s.mu.Unlock()
}

// Stats reports pool allocation counters for diagnostics/tests.
type Stats struct {
	Created int64
	Reused  int64
}

func (p *Pool) Stats() Stats {
	return Stats{Created: p.created.Load(), Reused: p.reused.Load()}
}
