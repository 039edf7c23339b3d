package netmsg

import "sync/atomic"

// SessionRef is the minimal view of a session a Packet needs to hold: a
// reference it must release when the packet is freed, and enough identity
// for logging. The concrete type lives in package session; netmsg must not
// import it back (session already imports netmsg for Packet), so this
// narrow interface is the seam between the two.
type SessionRef interface {
	DecRef()
	ID() uint64
}

// Packet is a reference-counted, pool-backed message. A single Packet
// built for a broadcast can be shared across N recipients by AddRef-ing it
// once per send instead of re-serializing the payload N times.
type Packet struct {
	Tag     Tag
	ID      uint16     // wire packet id, meaningful for TagNetworkData sends
	Session SessionRef // nil for LAMBDA_JOB and LOGIC_TICK
	Buf     []byte     // payload slice into the pool's backing block
	Job     func()     // set only for TagLambdaJob

	pool *Pool
	refs atomic.Int32
}

// AddRef increments the packet's reference count. Callers must pair every
// AddRef with a DecRef.
func (p *Packet) AddRef() {
	p.refs.Add(1)
}

// DecRef decrements the reference count and returns the packet to its pool
// once it reaches zero. It also releases the session reference the packet
// was holding, if any.
func (p *Packet) DecRef() {
	if p.refs.Add(-1) > 0 {
		return
	}
	if p.Session != nil {
		p.Session.DecRef()
		p.Session = nil
	}
	if p.pool != nil {
		p.pool.free(p)
	}
}

// RefCount reports the current reference count, for tests and diagnostics.
func (p *Packet) RefCount() int32 {
	return p.refs.Load()
}
