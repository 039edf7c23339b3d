package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/forgenet/forgenet/internal/cipher"
	"github.com/forgenet/forgenet/internal/dispatch"
	"github.com/forgenet/forgenet/internal/netmsg"
	"github.com/forgenet/forgenet/internal/session"
	"github.com/forgenet/forgenet/internal/wire"
)

const udpReadBufSize = 2048

// UDPEndpoint tracks which session a datagram token currently resolves to
// and the remote address it was last seen at.
type udpEndpoint struct {
	sessionID uint64
	addr      *net.UDPAddr
}

// Receiver handles unreliable/low-latency datagram traffic multiplexed
// over one socket, keyed by the per-session token embedded (unencrypted)
// in every datagram's header. NAT rebinding is tolerated: if a token's
// remote address changes, the endpoint is updated in place rather than
// treated as a new session, since a client's outbound UDP port commonly
// changes mid-session behind a NAT. A rebind attempt presenting a token
// that belongs to a different session than the one currently bound to
// that address is refused — the safe default when the two can't be
// reconciled.
type Receiver struct {
	conn       *net.UDPConn
	packets    *netmsg.Pool
	sessions   func(token uint64) *session.Session
	dispatcher *dispatch.Dispatcher

	mu        sync.Mutex
	endpoints map[uint64]*udpEndpoint // token -> endpoint
}

// NewReceiver builds a Receiver. sessionByToken resolves a session and its
// cipher given the token carried in each datagram's header — the server
// wires this to whatever table maps tokens to sessions at handshake time.
func NewReceiver(packets *netmsg.Pool, sessionByToken func(token uint64) *session.Session, dispatcher *dispatch.Dispatcher) *Receiver {
	return &Receiver{
		packets:    packets,
		sessions:   sessionByToken,
		dispatcher: dispatcher,
		endpoints:  make(map[uint64]*udpEndpoint),
	}
}

// Run binds a UDP socket on addr and serves until ctx is cancelled.
func (r *Receiver) Run(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolving udp addr %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listening udp on %s: %w", addr, err)
	}
	r.conn = conn

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, udpReadBufSize)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("udp read failed", slog.Any("err", err))
			continue
		}
		r.handleDatagram(buf[:n], from)
	}
}

func (r *Receiver) handleDatagram(raw []byte, from *net.UDPAddr) {
	if len(raw) < wire.UDPHeaderSize {
		return
	}
	token := binary.LittleEndian.Uint64(raw[0:8])

	sess := r.sessions(token)
	if sess == nil {
		slog.Debug("udp datagram for unknown token", slog.Uint64("token", token))
		return
	}

	if !r.acceptEndpoint(token, sess.ID(), from) {
		slog.Warn("refused udp rebind: token belongs to a different session",
			slog.Uint64("token", token), slog.Any("from", from))
		return
	}

	datagram, err := wire.DecodeDatagram(raw)
	if err != nil {
		slog.Debug("malformed udp datagram", slog.Any("err", err))
		return
	}
	sess.Cipher().Decrypt(datagram.Payload)

	pkt := r.packets.Get(netmsg.TagNetworkData)
	pkt.ID = datagram.ID
	pkt.Buf = append(pkt.Buf, datagram.Payload...)
	sess.AddRef()
	pkt.Session = sess
	if r.dispatcher != nil {
		r.dispatcher.Post(pkt)
	} else {
		pkt.DecRef()
	}
}

// acceptEndpoint records or updates the address a token resolves to,
// refusing the update if the token is already bound to a different
// session than sessionID — see the package doc for the NAT-rebind policy.
func (r *Receiver) acceptEndpoint(token, sessionID uint64, from *net.UDPAddr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ep, exists := r.endpoints[token]
	if !exists {
		r.endpoints[token] = &udpEndpoint{sessionID: sessionID, addr: from}
		return true
	}
	if ep.sessionID != sessionID {
		return false
	}
	ep.addr = from // NAT rebind: same session, new address
	return true
}

// Send writes one datagram to the endpoint currently bound to token,
// encrypting payload in place with stream. Returns an error if the token
// has no known endpoint yet.
func (r *Receiver) Send(token uint64, stream cipher.Stream, id uint16, payload []byte) error {
	r.mu.Lock()
	ep, ok := r.endpoints[token]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: no udp endpoint bound for token %d", token)
	}

	buf := make([]byte, wire.UDPHeaderSize+len(payload))
	copy(buf[wire.UDPHeaderSize:], payload)
	n, err := wire.EncodeDatagram(buf, stream, token, id, len(payload))
	if err != nil {
		return err
	}
	_, err = r.conn.WriteToUDP(buf[:n], ep.addr)
	return err
}
