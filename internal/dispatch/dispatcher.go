// Package dispatch implements the tagged-message fabric that fans packet
// I/O, timer events, and posted jobs out to worker goroutines, all
// observing FIFO order per producer and capacity-based backpressure.
package dispatch

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/forgenet/forgenet/internal/netmsg"
)

// Backpressure thresholds: once the queue depth crosses HighWater the
// dispatcher is considered overloaded (a transport should stop accepting
// new reads), and it stays overloaded until depth drops back to LowWater
// — hysteresis that avoids flapping right at the boundary.
const (
	HighWater = 5000
	LowWater  = 3000
	batchSize = 64
)

// DestroyChecker is satisfied by anything a Packet's Session can be
// type-asserted to that also exposes CanDestroy, letting the pending
// destroy sweep poll sessions without dispatch importing package session.
type DestroyChecker interface {
	CanDestroy() bool
}

// Handler receives decoded messages from Process. Implementations must not
// block for long: Process runs them inline on a worker goroutine.
type Handler interface {
	HandlePacket(session netmsg.SessionRef, payload []byte) error
	OnSessionConnect(session netmsg.SessionRef)
	OnSessionDisconnect(session netmsg.SessionRef)
}

// TimerHandler receives timer-tagged messages routed by Process.
type TimerHandler interface {
	OnTimerExpired(pkt *netmsg.Packet)
	OnTick(pkt *netmsg.Packet)
}

// Dispatcher is a bounded FIFO of tagged packets drained by one or more
// worker goroutines calling Process in a loop. It is the single point
// messages cross from I/O goroutines into application logic, which is what
// lets application handlers assume single-threaded-per-session execution
// as long as callers route all work for one session through the same
// dispatcher instance.
type Dispatcher struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*netmsg.Packet
	waiters  int
	closed   bool
	pending  []DestroyChecker
	depth    atomic.Int64
	handler  Handler
	timers   TimerHandler
}

// New builds a Dispatcher that routes NETWORK_* messages to handler and
// LOGIC_TIMER_*/LOGIC_TICK messages to timers.
func New(handler Handler, timers TimerHandler) *Dispatcher {
	d := &Dispatcher{handler: handler, timers: timers}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Post enqueues a message. Safe for concurrent use by any number of
// producers.
func (d *Dispatcher) Post(pkt *netmsg.Packet) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		pkt.DecRef()
		return
	}
	d.queue = append(d.queue, pkt)
	d.depth.Add(1)
	notify := d.waiters > 0
	d.mu.Unlock()

	if notify {
		d.cond.Signal()
	}
}

// Push wraps job in a LAMBDA_JOB packet and posts it — the mechanism
// async database calls and timer callbacks use to hop back onto a worker
// goroutine.
func (d *Dispatcher) Push(job func()) {
	d.Post(netmsg.NewLambdaJob(job))
}

// Depth reports the current queue length.
func (d *Dispatcher) Depth() int64 { return d.depth.Load() }

// IsOverloaded reports whether depth has crossed HighWater.
func (d *Dispatcher) IsOverloaded() bool { return d.Depth() >= HighWater }

// IsRecovered reports whether depth has fallen back to LowWater or below,
// for callers that paused accepting new work while overloaded and want to
// know when it's safe to resume.
func (d *Dispatcher) IsRecovered() bool { return d.Depth() <= LowWater }

// Wait blocks until at least one message is queued or Close is called.
// Worker goroutines call Wait then Process in a loop.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waiters++
	for len(d.queue) == 0 && !d.closed {
		d.cond.Wait()
	}
	d.waiters--
}

// Process drains up to batchSize queued messages and dispatches each to
// the configured handler, then runs one pass of the pending-destroy
// sweep. Returns the number of messages processed.
func (d *Dispatcher) Process() int {
	d.mu.Lock()
	n := min(batchSize, len(d.queue))
	batch := append([]*netmsg.Packet(nil), d.queue[:n]...)
	d.queue = d.queue[n:]
	d.mu.Unlock()
	d.depth.Add(-int64(n))

	for _, pkt := range batch {
		d.dispatchOne(pkt)
	}
	d.sweepPendingDestroy()
	return n
}

func (d *Dispatcher) dispatchOne(pkt *netmsg.Packet) {
	defer pkt.DecRef()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch handler panicked", slog.Any("tag", pkt.Tag), slog.Any("recover", r))
		}
	}()

	switch pkt.Tag {
	case netmsg.TagNetworkData:
		if err := d.handler.HandlePacket(pkt.Session, pkt.Buf); err != nil {
			// Handler errors are the application's concern to log; the
			// dispatcher only guarantees the packet's reference is
			// released regardless of outcome.
			_ = err
		}
	case netmsg.TagNetworkConnect:
		d.handler.OnSessionConnect(pkt.Session)
	case netmsg.TagNetworkDisconnect:
		d.handler.OnSessionDisconnect(pkt.Session)
		if dc, ok := pkt.Session.(DestroyChecker); ok {
			d.mu.Lock()
			d.pending = append(d.pending, dc)
			d.mu.Unlock()
		}
	case netmsg.TagLogicTimerExpired, netmsg.TagLogicTick:
		if d.timers != nil {
			if pkt.Tag == netmsg.TagLogicTick {
				d.timers.OnTick(pkt)
			} else {
				d.timers.OnTimerExpired(pkt)
			}
		}
	case netmsg.TagLambdaJob:
		if pkt.Job != nil {
			pkt.Job()
		}
	}
}

// sweepPendingDestroy removes destroyable entries from the pending list in
// O(1) per removal via swap-and-pop, rather than preserving order — order
// doesn't matter for a set of independent sessions waiting to be reclaimed.
func (d *Dispatcher) sweepPendingDestroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := 0
	for i < len(d.pending) {
		if d.pending[i].CanDestroy() {
			last := len(d.pending) - 1
			d.pending[i] = d.pending[last]
			d.pending = d.pending[:last]
			continue
		}
		i++
	}
}

// PendingDestroyCount reports how many disconnected sessions are still
// waiting on outstanding I/O references before they can be recycled.
func (d *Dispatcher) PendingDestroyCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close wakes every blocked Wait caller and stops accepting new posts.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()
}
