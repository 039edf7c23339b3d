// Package transport wires the session pool, recv/send buffers, and wire
// codec into the two concrete listeners a server runs: a TCP Acceptor for
// connection-oriented clients, and a UDP Receiver for unreliable/low-latency
// traffic with NAT-rebind tolerance.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/forgenet/forgenet/internal/cipher"
	"github.com/forgenet/forgenet/internal/dispatch"
	"github.com/forgenet/forgenet/internal/netmsg"
	"github.com/forgenet/forgenet/internal/session"
	"github.com/forgenet/forgenet/internal/wire"
)

const keepAlivePeriod = 30 * time.Second

// CipherFactory mints a fresh Stream for a newly accepted connection —
// typically a closure capturing the configured Kind and a per-connection
// or per-server key.
type CipherFactory func() (cipher.Stream, error)

// Acceptor runs a TCP accept loop, activating a pooled Session per
// connection and handing received frames to a Dispatcher as
// TagNetworkData packets.
type Acceptor struct {
	pool        *session.Pool
	packets     *netmsg.Pool
	dispatcher  *dispatch.Dispatcher
	cipherNew   CipherFactory
	readTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
}

// NewAcceptor builds an Acceptor. readTimeout, if positive, is applied to
// every Read call so an idle connection is dropped instead of leaking a
// goroutine forever.
func NewAcceptor(pool *session.Pool, packets *netmsg.Pool, dispatcher *dispatch.Dispatcher, cipherNew CipherFactory, readTimeout time.Duration) *Acceptor {
	return &Acceptor{pool: pool, packets: packets, dispatcher: dispatcher, cipherNew: cipherNew, readTimeout: readTimeout}
}

// Addr returns the listener's address, or nil before Run/Serve starts.
func (a *Acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Run listens on addr and serves until ctx is cancelled.
func (a *Acceptor) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()
	return a.Serve(ctx, ln)
}

// Serve accepts connections from an already-open listener. Exposed
// separately so tests can drive it against a listener bound to an
// ephemeral port.
func (a *Acceptor) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Error("accept failed", slog.Any("err", err))
			continue
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetKeepAlive(true)
			_ = tcpConn.SetKeepAlivePeriod(keepAlivePeriod)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.handleConn(ctx, conn)
		}()
	}
	wg.Wait()
	return nil
}

func (a *Acceptor) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sess := a.pool.Acquire()
	if sess == nil {
		slog.Warn("session pool exhausted, dropping connection", slog.Any("remote", conn.RemoteAddr()))
		return
	}

	stream, err := a.cipherNew()
	if err != nil {
		slog.Error("cipher setup failed", slog.Any("err", err))
		sess.MarkDead()
		return
	}

	if !sess.Activate(conn, stream) {
		slog.Error("session activation failed", slog.Uint64("session", sess.ID()))
		return
	}

	a.postSessionEvent(netmsg.TagNetworkConnect, sess)

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go RunWritePump(pumpCtx, sess)

	a.readLoop(ctx, sess)

	// Post the disconnect notification before MarkDead drops the owning
	// transport ref: MarkDead's DecRef can reset and return sess to the
	// free pool synchronously once ioRef hits zero, and that must not
	// happen while a dispatcher message still references this session.
	a.postSessionEvent(netmsg.TagNetworkDisconnect, sess)
	sess.MarkDead()
}

// postSessionEvent posts a CONNECT/DISCONNECT notification carrying sess,
// taking a matching AddRef so the packet's eventual DecRef balances
// exactly like a TagNetworkData packet's does.
func (a *Acceptor) postSessionEvent(tag netmsg.Tag, sess *session.Session) {
	if a.dispatcher == nil {
		return
	}
	pkt := a.packets.Get(tag)
	sess.AddRef()
	pkt.Session = sess
	a.dispatcher.Post(pkt)
}

func (a *Acceptor) readLoop(ctx context.Context, sess *session.Session) {
	conn := sess.Conn()
	buf := sess.RecvBuffer()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if sess.State() != session.StateLive {
			return
		}

		if a.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(a.readTimeout))
		}

		slot := buf.WriteSlot(wire.HeaderSize)
		n, err := conn.Read(slot)
		if err != nil {
			return
		}
		buf.Advance(n)
		sess.Touch()

		for {
			frame, consumed, ok := wire.TryReadFrame(buf.Unread(), sess.Cipher())
			if !ok {
				break
			}
			pkt := a.packets.Get(netmsg.TagNetworkData)
			pkt.ID = frame.ID
			pkt.Buf = append(pkt.Buf, frame.Payload...)
			buf.Consume(consumed)

			sess.AddRef()
			pkt.Session = sess
			if a.dispatcher != nil {
				a.dispatcher.Post(pkt)
			} else {
				pkt.DecRef()
			}
		}
	}
}
