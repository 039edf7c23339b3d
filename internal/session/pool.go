package session

import "sync/atomic"

// Pool is a bounded, pre-allocating session pool. Acquire never blocks: it
// serves from a free list when one is available, lazily creates new
// sessions up to Max, and once Max is reached returns nil and counts a
// rejection — the caller (an Acceptor) is expected to close the incoming
// connection immediately in that case rather than letting a handshake run
// against a session that will never be serviced.
type Pool struct {
	free chan *Session

	max           int64
	totalCreated  atomic.Int64
	rejectionCnt  atomic.Int64
	nextID        atomic.Uint64
	recvBufSize   int
	sendQueueSize int
}

// NewPool pre-allocates preAllocate sessions (clamped to max) and allows
// up to max sessions to exist concurrently. max <= 0 means unbounded.
func NewPool(max, preAllocate, recvBufSize, sendQueueSize int) *Pool {
	capacity := max
	if capacity <= 0 {
		capacity = preAllocate
		if capacity <= 0 {
			capacity = 1
		}
	}
	p := &Pool{
		free:          make(chan *Session, capacity),
		max:           int64(max),
		recvBufSize:   recvBufSize,
		sendQueueSize: sendQueueSize,
	}
	if preAllocate > max && max > 0 {
		preAllocate = max
	}
	for range preAllocate {
		p.totalCreated.Add(1)
		s := p.newSession()
		p.free <- s
	}
	return p
}

func (p *Pool) newSession() *Session {
	return newSession(p, p.recvBufSize, p.sendQueueSize)
}

// mintID hands out the next process-lifetime-unique session identity.
// Called once per Activate, not once per struct allocation, so a pooled
// struct recycled across unrelated connections never repeats an ID.
func (p *Pool) mintID() uint64 {
	return p.nextID.Add(1)
}

// Acquire returns a pooled session in StatePooled, or nil if the pool is
// at capacity. Callers must call Activate before using the session for
// I/O, and eventually MarkDead to return it.
func (p *Pool) Acquire() *Session {
	select {
	case s := <-p.free:
		return s
	default:
	}

	for {
		cur := p.totalCreated.Load()
		if p.max > 0 && cur >= p.max {
			p.rejectionCnt.Add(1)
			return nil
		}
		if p.totalCreated.CompareAndSwap(cur, cur+1) {
			break
		}
	}
	return p.newSession()
}

// release returns a reset session to the free list. Called only by
// Session.DecRef once a session reaches Dead with no outstanding I/O
// references.
func (p *Pool) release(s *Session) {
	select {
	case p.free <- s:
	default:
		// Free list is at its pre-allocated capacity; drop the session and
		// let the garbage collector reclaim it rather than blocking the
		// caller that triggered the release.
	}
}

// ApproximateFree reports how many sessions currently sit in the free
// list. Approximate because concurrent Acquire/release can race the read.
func (p *Pool) ApproximateFree() int { return len(p.free) }

// TotalCreated reports how many sessions this pool has ever constructed.
func (p *Pool) TotalCreated() int64 { return p.totalCreated.Load() }

// RejectionCount reports how many Acquire calls failed because the pool
// was at capacity.
func (p *Pool) RejectionCount() int64 { return p.rejectionCnt.Load() }
