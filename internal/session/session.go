package session

import (
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/forgenet/forgenet/internal/cipher"
	"github.com/forgenet/forgenet/internal/netmsg"
)

// ErrSessionClosed is returned by operations attempted on a session that
// has already moved to Draining or Dead.
var ErrSessionClosed = errors.New("session: closed")

// ErrSendQueueFull is returned by Send when the outbound queue has no
// room and the caller asked not to block.
var ErrSendQueueFull = errors.New("session: send queue full")

// Session is a pooled, reference-counted connection handle. Acquire
// returns one from a Pool already in StatePooled; a transport calls
// Activate to move it to StateLive once a connection is attached.
//
// ioRef tracks in-flight I/O and handler work holding a reference to the
// session: the owning transport holds one for as long as the connection is
// open, and each posted dispatcher message referencing the session holds
// one more. The session is only returned to its pool once it has both
// reached StateDead and its ioRef has dropped to zero — so a handler still
// processing a NETWORK_DISCONNECT message for a session can't be handed a
// freshly recycled session underneath it.
type Session struct {
	id    uint64
	state atomic.Int32
	ioRef atomic.Int32

	conn       net.Conn
	cipher     cipher.Stream
	recvBuf    *RecvBuffer
	sendQueue  *SendQueue
	remoteAddr net.Addr

	lastActivity atomic.Int64 // unix nanos

	pool *Pool
}

func newSession(pool *Pool, recvSize, sendQueueSize int) *Session {
	s := &Session{
		pool:      pool,
		recvBuf:   NewRecvBuffer(recvSize),
		sendQueue: NewSendQueue(sendQueueSize),
	}
	s.state.Store(int32(StatePooled))
	return s
}

// ID returns the session's stable identity, unique for the lifetime of the
// process (ids are never reused even though the struct is pooled). It is
// minted fresh on every Activate, not once per struct allocation, so two
// unrelated connections that happen to share a recycled struct never
// report the same ID.
func (s *Session) ID() uint64 { return s.id }

// State returns the current lifecycle stage.
func (s *Session) State() State { return State(s.state.Load()) }

// Activate transitions a pooled session to Live, mints a fresh process-
// lifetime-unique ID, and attaches the transport-level connection and
// cipher. Returns false if the session wasn't in StatePooled (a
// programming error from the caller).
func (s *Session) Activate(conn net.Conn, stream cipher.Stream) bool {
	if !s.state.CompareAndSwap(int32(StatePooled), int32(StateLive)) {
		return false
	}
	s.id = s.pool.mintID()
	s.conn = conn
	s.cipher = stream
	s.remoteAddr = conn.RemoteAddr()
	s.ioRef.Store(1) // owning transport's reference
	s.touchActivity()
	return true
}

// Conn returns the attached net.Conn, or nil if the session isn't Live.
func (s *Session) Conn() net.Conn { return s.conn }

// Cipher returns the attached stream cipher.
func (s *Session) Cipher() cipher.Stream { return s.cipher }

// RecvBuffer returns the session's stream-reassembly buffer.
func (s *Session) RecvBuffer() *RecvBuffer { return s.recvBuf }

// SendQueue returns the session's outbound queue.
func (s *Session) SendQueue() *SendQueue { return s.sendQueue }

// RemoteAddr returns the peer address captured at Activate time.
func (s *Session) RemoteAddr() net.Addr { return s.remoteAddr }

func (s *Session) touchActivity() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// IdleSince reports how long it has been since the session last recorded
// activity (a successful read or write).
func (s *Session) IdleSince() time.Duration {
	last := s.lastActivity.Load()
	if last == 0 {
		return 0
	}
	return time.Since(time.Unix(0, last))
}

// Touch records activity now; transports call this on every successful
// read or write so idle-timeout checks stay accurate.
func (s *Session) Touch() { s.touchActivity() }

// BeginDrain moves a Live session to Draining: no new sends are accepted,
// but in-flight I/O referencing the session may continue until it calls
// DecRef. Returns false if the session was not Live.
func (s *Session) BeginDrain() bool {
	return s.state.CompareAndSwap(int32(StateLive), int32(StateDraining))
}

// MarkDead transitions Draining (or Live, for abrupt disconnects) to Dead
// and drops the owning transport's ioRef. Once the last ioRef is released
// the session is returned to its pool.
func (s *Session) MarkDead() {
	for {
		cur := State(s.state.Load())
		if cur == StateDead {
			return
		}
		if s.state.CompareAndSwap(int32(cur), int32(StateDead)) {
			break
		}
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.DecRef()
}

// AddRef increments the I/O reference count. Callers posting a message
// that carries this session onto the dispatcher must AddRef before
// posting and DecRef once the message is freed.
func (s *Session) AddRef() {
	s.ioRef.Add(1)
}

// DecRef releases one I/O reference. When the session is Dead and no
// references remain, it is reset and returned to its pool.
func (s *Session) DecRef() {
	if s.ioRef.Add(-1) > 0 {
		return
	}
	if State(s.state.Load()) != StateDead {
		return
	}
	s.reset()
	if s.pool != nil {
		s.pool.release(s)
	}
}

// CanDestroy reports whether the session is fully drained and ready for
// its slot to be reclaimed — the predicate the dispatcher's pending-destroy
// sweep polls.
func (s *Session) CanDestroy() bool {
	return State(s.state.Load()) == StateDead && s.ioRef.Load() <= 0
}

func (s *Session) reset() {
	s.conn = nil
	s.cipher = nil
	s.remoteAddr = nil
	s.recvBuf.Reset()
	s.sendQueue.Reset()
	s.lastActivity.Store(0)
	s.state.Store(int32(StatePooled))
}

// Send enqueues data for the write pump without blocking. Returns
// ErrSendQueueFull if the queue has no room, ErrSessionClosed once the
// session has left StateLive.
func (s *Session) Send(data []byte) error {
	if State(s.state.Load()) != StateLive {
		return ErrSessionClosed
	}
	if !s.sendQueue.TryPush(data) {
		return ErrSendQueueFull
	}
	return nil
}

// EnqueueShared queues an AddRef'd broadcast packet for this session's
// writer goroutine, implementing the Broadcaster interface room.Room fans
// shared packets out through. The caller has already called pkt.AddRef()
// for this send; on failure this method releases that ref itself so
// callers never have to special-case it.
func (s *Session) EnqueueShared(pkt *netmsg.Packet) bool {
	if State(s.state.Load()) != StateLive {
		pkt.DecRef()
		return false
	}
	if !s.sendQueue.TryPushShared(pkt) {
		pkt.DecRef()
		return false
	}
	return true
}
