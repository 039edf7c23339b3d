// Command forgenetd runs the networking/concurrency substrate as a
// standalone process: a TCP acceptor and UDP receiver feeding a tagged
// dispatcher, a timer service driving a demo Room's tick through its own
// strand, and a Postgres-backed database pool for whatever the
// application layer built on top needs to persist. It wires every piece
// together and does not itself implement any gameplay.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forgenet/forgenet/internal/cipher"
	"github.com/forgenet/forgenet/internal/config"
	"github.com/forgenet/forgenet/internal/dbpool"
	"github.com/forgenet/forgenet/internal/dispatch"
	"github.com/forgenet/forgenet/internal/netmsg"
	"github.com/forgenet/forgenet/internal/room"
	"github.com/forgenet/forgenet/internal/session"
	"github.com/forgenet/forgenet/internal/strand"
	"github.com/forgenet/forgenet/internal/timer"
	"github.com/forgenet/forgenet/internal/transport"
	"github.com/forgenet/forgenet/internal/workerpool"
)

const ConfigPath = "config/forgenetd.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("FORGENETD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadForgenetd(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("forgenetd starting",
		"bind", cfg.BindAddress, "port", cfg.Port, "encryption", cfg.Encryption)

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return fmt.Errorf("parsing read_timeout: %w", err)
	}
	tickInterval := time.Duration(cfg.TickIntervalMS) * time.Millisecond

	// disp is constructed below, after handler; db needs a Poster at Open
	// time to post async completions back through it. poster forwards to
	// disp once it exists, closing the small cycle between the two.
	poster := &posterRef{}

	db, err := dbpool.Open(ctx, cfg.Database.DSN(), poster)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()
	slog.Info("database connected")

	if err := dbpool.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	packets := netmsg.NewPool(cfg.PacketPoolShardCount, cfg.PacketPoolOverflow)
	sessions := session.NewPool(cfg.SessionPoolMax, cfg.SessionPoolPreAllocate, cfg.RecvBufSize, cfg.SendQueueSize)
	workers := workerpool.New(cfg.TaskWorkerCount, 0)

	registry := newSessionRegistry()

	handler := &demoHandler{db: db, registry: registry, workers: workers}
	timers := &demoTimers{}
	disp := dispatch.New(handler, timers)
	poster.disp = disp

	timerSvc := timer.NewService(tickInterval, disp)

	demoRoom := room.New(1, tickInterval, cfg.GridCellSize, packets)
	demoRoom.SetStateEncoder(func(state room.RoomState) (netmsg.Tag, uint16, []byte) {
		return netmsg.TagNetworkData, 0, []byte(state.String())
	})

	// The room's tick timer fires through timerSvc's wheel, which posts
	// the tick lambda onto roomStrand rather than running it directly on
	// whichever dispatcher worker happens to pop it: every tick for this
	// room is serialized through the strand even though the strand itself
	// shares the same worker pool as every other task in the process.
	roomStrand := strand.New(workers)
	roomDT := demoRoom.TickInterval().Seconds()
	timerSvc.Add(tickInterval, true, func() {
		roomStrand.Post(func() { demoRoom.ExecuteUpdate(roomDT) })
	})

	key, err := encryptionKey(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("decoding encryption_key: %w", err)
	}
	cipherKind := cipher.Kind(cfg.Encryption)
	cipherFactory := func() (cipher.Stream, error) { return cipher.New(cipherKind, key) }

	acceptor := transport.NewAcceptor(sessions, packets, disp, cipherFactory, readTimeout)
	receiver := transport.NewReceiver(packets, registry.lookup, disp)

	tcpAddr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	udpAddr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return workers.Run(gctx) })

	// Dispatcher.Wait has no context awareness of its own: it only wakes on
	// a new post or Close. Close it the moment shutdown starts so the
	// worker loops below actually return instead of blocking forever.
	g.Go(func() error {
		<-gctx.Done()
		disp.Close()
		return nil
	})

	for range cfg.WorkerThreadCount {
		g.Go(func() error {
			for {
				disp.Wait()
				if gctx.Err() != nil {
					return nil
				}
				disp.Process()
			}
		})
	}

	g.Go(func() error { timerSvc.Run(gctx); return nil })
	g.Go(func() error { return acceptor.Run(gctx, tcpAddr) })
	g.Go(func() error { return receiver.Run(gctx, udpAddr) })

	slog.Info("forgenetd ready", "tcp", tcpAddr, "udp", udpAddr)

	err = g.Wait()
	if err != nil && gctx.Err() == nil {
		return fmt.Errorf("server loop: %w", err)
	}
	return nil
}

// posterRef forwards Push calls to a *dispatch.Dispatcher set after
// construction, breaking the cycle between dbpool.Open (which wants a
// Poster up front) and dispatch.New (which wants the Handler that holds
// the *dbpool.Database).
type posterRef struct {
	disp *dispatch.Dispatcher
}

func (p *posterRef) Push(job func()) {
	if p.disp == nil {
		job()
		return
	}
	p.disp.Push(job)
}

// sessionRegistry maps a handshake-issued token to the live session it
// belongs to, the seam transport.Receiver needs to resolve an inbound
// UDP datagram back to a session without import-cycling into session
// itself. A session's own ID doubles as its token: a real deployment
// would mint a random token at TCP handshake time and hand it to the
// client in the key exchange, but nothing downstream of acceptEndpoint
// cares how the token was chosen.
type sessionRegistry struct {
	mu      sync.RWMutex
	byToken map[uint64]*session.Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{byToken: make(map[uint64]*session.Session)}
}

func (r *sessionRegistry) put(token uint64, sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken[token] = sess
}

func (r *sessionRegistry) remove(token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byToken, token)
}

func (r *sessionRegistry) lookup(token uint64) *session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byToken[token]
}

// demoHandler implements dispatch.Handler, persisting a connect/disconnect
// audit trail and echoing received payloads back to their sender so the
// end-to-end pipeline (accept, decode, dispatch, encode, write pump) has
// something to exercise without any gameplay layered on top.
type demoHandler struct {
	db       *dbpool.Database
	registry *sessionRegistry
	workers  *workerpool.Pool
}

func (h *demoHandler) HandlePacket(sref netmsg.SessionRef, payload []byte) error {
	sess, ok := sref.(*session.Session)
	if !ok {
		return nil
	}
	slog.Debug("packet received", "session", sess.ID(), "bytes", len(payload))
	echo := append([]byte(nil), payload...)
	h.workers.Submit(func() {
		if err := sess.Send(echo); err != nil {
			slog.Warn("echo send failed", "session", sess.ID(), "err", err)
		}
	})
	return nil
}

func (h *demoHandler) OnSessionConnect(sref netmsg.SessionRef) {
	sess, ok := sref.(*session.Session)
	if !ok {
		return
	}
	h.registry.put(sess.ID(), sess)
	slog.Info("session connected", "session", sess.ID(), "remote", sess.RemoteAddr())

	h.db.ExecuteAsync(context.Background(), func(res dbpool.ExecResult) {
		if res.Err != nil {
			slog.Warn("session_audit insert failed", "session", sess.ID(), "err", res.Err)
		}
	}, `INSERT INTO session_audit (session_id, remote_addr, connected_at) VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET remote_addr = EXCLUDED.remote_addr, connected_at = now()`,
		sess.ID(), sess.RemoteAddr().String())
}

func (h *demoHandler) OnSessionDisconnect(sref netmsg.SessionRef) {
	sess, ok := sref.(*session.Session)
	if !ok {
		return
	}
	h.registry.remove(sess.ID())
	slog.Info("session disconnected", "session", sess.ID())

	h.db.ExecuteAsync(context.Background(), func(res dbpool.ExecResult) {
		if res.Err != nil {
			slog.Warn("session_audit update failed", "session", sess.ID(), "err", res.Err)
		}
	}, `UPDATE session_audit SET disconnected_at = now() WHERE session_id = $1`, sess.ID())
}

// demoTimers implements dispatch.TimerHandler. The timer service routes
// expired callbacks through Dispatcher.Push as LAMBDA_JOB packets rather
// than TagLogicTimerExpired, so these two methods only ever see work a
// future application layer posts as LOGIC_TIMER_EXPIRED/LOGIC_TICK packets
// directly.
type demoTimers struct{}

func (demoTimers) OnTimerExpired(pkt *netmsg.Packet) {
	slog.Debug("timer expired", "packet", pkt.ID)
}

func (demoTimers) OnTick(pkt *netmsg.Packet) {
	slog.Debug("logic tick", "packet", pkt.ID)
}

func encryptionKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, nil
	}
	return hex.DecodeString(hexKey)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
