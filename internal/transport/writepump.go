package transport

import (
	"context"
	"log/slog"
	"net"

	"github.com/forgenet/forgenet/internal/session"
	"github.com/forgenet/forgenet/internal/wire"
)

const writePumpBatchSize = 32

// RunWritePump drains a session's SendQueue and writes frames to its
// connection, batching multiple pending items into one net.Buffers.WriteTo
// writev syscall when more than one is ready — the same batching the
// session layer's write pump this is grounded on already does, generalized
// to also accept shared broadcast packets alongside one-off buffers.
//
// Runs until ctx is cancelled or a write fails, at which point it marks
// the session dead so the rest of the system notices the disconnect.
func RunWritePump(ctx context.Context, sess *session.Session) {
	queue := sess.SendQueue()
	conn := sess.Conn()

	for {
		select {
		case <-ctx.Done():
			return
		case first, ok := <-queue.Chan():
			if !ok {
				return
			}
			batch := append([]session.OutItem{first}, queue.DrainBatch(writePumpBatchSize-1)...)
			if err := writeBatch(conn, sess, batch); err != nil {
				slog.Debug("write pump failed, closing session",
					slog.Uint64("session", sess.ID()), slog.Any("err", err))
				sess.MarkDead()
				return
			}
			sess.Touch()
		}
	}
}

func writeBatch(conn net.Conn, sess *session.Session, batch []session.OutItem) error {
	defer func() {
		for _, item := range batch {
			item.Release()
		}
	}()

	if len(batch) == 1 {
		return writeOne(conn, sess, batch[0])
	}

	frames := make(net.Buffers, 0, len(batch))
	for _, item := range batch {
		frame, err := frameItem(sess, item)
		if err != nil {
			return err
		}
		frames = append(frames, frame)
	}
	_, err := frames.WriteTo(conn)
	return err
}

func writeOne(conn net.Conn, sess *session.Session, item session.OutItem) error {
	frame, err := frameItem(sess, item)
	if err != nil {
		return err
	}
	_, err = conn.Write(frame)
	return err
}

// frameItem copies the item's payload into a fresh frame buffer (broadcast
// packets are shared read-only across recipients, so encryption — which
// mutates in place with this session's own rolling key state — must run
// on a private copy, never on the shared pooled buffer itself) and
// encrypts it with the session's cipher.
func frameItem(sess *session.Session, item session.OutItem) ([]byte, error) {
	payload := item.Payload()
	buf := make([]byte, wire.HeaderSize+len(payload)+16)
	copy(buf[wire.HeaderSize:], payload)

	var id uint16
	if item.Packet != nil {
		id = item.Packet.ID
	}

	if err := wire.WriteFrame(discardWriter{}, sess.Cipher(), id, buf, len(payload)); err != nil {
		return nil, err
	}
	total := wire.HeaderSize + len(payload)
	return buf[:total], nil
}

// discardWriter lets frameItem reuse wire.WriteFrame's encrypt-and-encode
// logic purely for its side effect on buf, without it performing the
// actual network write — frameItem's caller does that itself so it can
// batch several frames into one net.Buffers.WriteTo.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
