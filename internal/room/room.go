// Package room implements the fixed-interval tick loop a server runs one
// instance of per active game room/match/zone: spatial-grid maintenance,
// AI movement, physics integration, and network synchronization, with
// gameplay systems (waves, effects, combat) plugged in as narrow
// interfaces rather than built into the loop itself.
package room

import (
	"log/slog"
	"time"

	"github.com/forgenet/forgenet/internal/netmsg"
)

// WaveManager advances whatever spawns monsters over time. Entirely
// app-defined; the room only calls Update once per tick.
type WaveManager interface {
	Update(dt float64, r *Room)
	// Cleared reports whether the wave objective has been met (every wave
	// spawned and every spawned monster dealt with). Running rooms that
	// report Cleared transition to Ended on the next tick.
	Cleared() bool
}

// EffectManager advances time-limited buffs/debuffs/area effects.
type EffectManager interface {
	Update(totalRunTime float64, r *Room)
}

// CombatManager performs broad+narrow phase collision detection, applies
// damage, and removes dead objects, in whatever order the gameplay layer
// defines.
type CombatManager interface {
	Update(dt float64, r *Room)
}

// SyncEncoder serializes the current tick's moving objects into one wire
// payload. The room core has no opinion on the schema — only that however
// many objects moved, encoding happens exactly once per tick.
type SyncEncoder func(objects []GameObject) (tag netmsg.Tag, packetID uint16, payload []byte)

// AckEncoder serializes a per-player state acknowledgement, echoing back
// the last client input tick the room has processed for that player —
// lets a client reconcile its local prediction against the authoritative
// tick that just ran.
type AckEncoder func(p Player, serverTick uint64) (tag netmsg.Tag, packetID uint16, payload []byte)

// Room runs one fixed-interval simulation loop over a set of objects and
// players. It is deliberately not a singleton: a server hosts many rooms,
// each with its own tick goroutine, grid, and object set.
type Room struct {
	id           uint64
	tickInterval time.Duration
	pool         *netmsg.Pool

	grid *adaptiveGrid

	objects map[uint64]GameObject
	players map[uint64]Player

	waveMgr   WaveManager
	effectMgr EffectManager
	combatMgr CombatManager
	syncEnc   SyncEncoder
	ackEnc    AckEncoder
	stateEnc  StateEncoder

	serverTick   uint64
	totalRunTime float64
	state        RoomState

	perf perfCounters
}

type perfCounters struct {
	lastLogAt    time.Time
	ticksThisSec int
	objectsMoved int
	bytesSent    int
}

// New builds a Room ticking at interval, indexing objects in a spatial
// grid with the given cell size. interval only determines dt for
// ExecuteUpdate; driving the actual schedule is the caller's job (see
// internal/timer.Service and internal/strand.Strand).
func New(id uint64, interval time.Duration, cellSize float64, pool *netmsg.Pool) *Room {
	r := &Room{
		id:           id,
		tickInterval: interval,
		pool:         pool,
		grid:         newAdaptiveGrid(cellSize),
		objects:      make(map[uint64]GameObject),
		players:      make(map[uint64]Player),
	}
	r.perf.lastLogAt = time.Now()
	return r
}

// TickInterval returns the interval this room's dt is computed against.
func (r *Room) TickInterval() time.Duration { return r.tickInterval }

// ID returns the room's identity.
func (r *Room) ID() uint64 { return r.id }

// SetManagers wires the optional gameplay-layer collaborators. Any of them
// may be nil, in which case that step of the tick is skipped.
func (r *Room) SetManagers(wave WaveManager, effect EffectManager, combat CombatManager) {
	r.waveMgr, r.effectMgr, r.combatMgr = wave, effect, combat
}

// SetEncoders wires the payload-building callbacks the network-sync step
// uses.
func (r *Room) SetEncoders(sync SyncEncoder, ack AckEncoder) {
	r.syncEnc, r.ackEnc = sync, ack
}

// SetStateEncoder wires the payload-building callback used to broadcast a
// LOBBY/READY/RUNNING/ENDED transition to every current player.
func (r *Room) SetStateEncoder(enc StateEncoder) {
	r.stateEnc = enc
}

// State returns the room's current lifecycle stage.
func (r *Room) State() RoomState { return r.state }

// AddObject registers obj with the room and its spatial grid.
func (r *Room) AddObject(obj GameObject) {
	r.objects[obj.ObjectID()] = obj
	r.grid.add(obj)
}

// RemoveObject drops obj from the room and its spatial grid.
func (r *Room) RemoveObject(id uint64) {
	delete(r.objects, id)
	delete(r.players, id)
	r.grid.remove(id)
}

// AddPlayer registers a player-controlled object, also tracked in objects.
// The first player to join moves a Lobby room to Ready.
func (r *Room) AddPlayer(p Player) {
	r.AddObject(p)
	r.players[p.ObjectID()] = p
	if r.state == StateLobby {
		r.transition(StateReady)
	}
}

// Grid exposes the room's spatial index for gameplay-layer queries
// (GetMonstersInRange, GetNearestPlayer, and similar helpers live outside
// this package, built on top of this).
func (r *Room) Grid() *adaptiveGrid { return r.grid }

// Stop forces an immediate transition to Ended, for an operator-triggered
// shutdown rather than a natural win/loss conclusion.
func (r *Room) Stop() {
	if r.state != StateEnded {
		r.transition(StateEnded)
	}
}

// transition moves the room to next and broadcasts the change to every
// current player, if a state encoder is wired.
func (r *Room) transition(next RoomState) {
	r.state = next
	slog.Info("room state transition", slog.Uint64("room", r.id), slog.String("state", next.String()))
	if r.stateEnc == nil || len(r.players) == 0 {
		return
	}
	tag, id, payload := r.stateEnc(next)
	recipients := make([]Broadcaster, 0, len(r.players))
	for _, p := range r.players {
		recipients = append(recipients, p.Session())
	}
	broadcastShared(r.pool, tag, id, payload, recipients)
}

// allPlayersReady reports whether every current player has reported
// GAME_READY. A room with no players is never ready.
func (r *Room) allPlayersReady() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.IsReady() {
			return false
		}
	}
	return true
}

// allPlayersDead reports whether every current player's object has died.
func (r *Room) allPlayersDead() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.IsDead() {
			return false
		}
	}
	return true
}

// ExecuteUpdate advances the room's lifecycle state and, only while
// Running, runs exactly one simulation tick. Exported so tests (and a
// deterministic replay harness) can drive ticks directly instead of
// through Start's wall-clock ticker.
func (r *Room) ExecuteUpdate(dt float64) {
	switch r.state {
	case StateLobby:
		return
	case StateReady:
		if r.allPlayersReady() {
			r.transition(StateRunning)
		}
		return
	case StateEnded:
		return
	}

	r.totalRunTime += dt
	r.serverTick++

	if r.waveMgr != nil {
		r.waveMgr.Update(dt, r)
	}
	if r.effectMgr != nil {
		r.effectMgr.Update(r.totalRunTime, r)
	}

	// Grid rebuild happens before AI update so objects spawned this tick
	// (by the wave manager, just above) are visible to steering queries
	// run by everything else this tick.
	r.rebuildGrid()

	r.updateAI(dt)
	r.integratePhysics(dt)

	if r.combatMgr != nil {
		r.combatMgr.Update(dt, r)
	}

	moved := r.syncNetwork()

	if r.allPlayersDead() || (r.waveMgr != nil && r.waveMgr.Cleared()) {
		r.transition(StateEnded)
	}

	r.perf.ticksThisSec++
	r.perf.objectsMoved += moved
	if time.Since(r.perf.lastLogAt) >= time.Second {
		slog.Debug("room tick perf",
			slog.Uint64("room", r.id),
			slog.Int("ticks", r.perf.ticksThisSec),
			slog.Int("objects", len(r.objects)),
			slog.Int("players", len(r.players)),
			slog.Int("objectsMoved", r.perf.objectsMoved),
		)
		r.perf.lastLogAt = time.Now()
		r.perf.ticksThisSec = 0
		r.perf.objectsMoved = 0
	}
}

func (r *Room) rebuildGrid() {
	for _, obj := range r.objects {
		if obj.IsDead() {
			r.grid.remove(obj.ObjectID())
			continue
		}
		r.grid.update(obj)
	}
}

func (r *Room) updateAI(dt float64) {
	for _, obj := range r.objects {
		if obj.IsDead() {
			continue
		}
		strategy := obj.Strategy()
		if strategy == nil {
			continue // player-controlled or otherwise exempt from AI steering
		}

		x, y := obj.Position()
		neighbors := r.grid.neighborsWithin(x, y, obj.Radius()*8, obj.ObjectID())
		tx, ty, ok := obj.Target()
		vx, vy := strategy.Steer(obj, neighbors, tx, ty, ok)
		obj.SetVelocity(vx, vy)
	}
}

func (r *Room) integratePhysics(dt float64) {
	for _, obj := range r.objects {
		if obj.IsDead() {
			continue
		}
		x, y := obj.Position()
		vx, vy := obj.Velocity()
		obj.SetPosition(x+vx*dt, y+vy*dt)
	}
}

// syncNetwork broadcasts one encoded payload for the whole tick's moved
// objects (built once regardless of player count) and, separately, a
// per-player acknowledgement echoing the tick just processed.
func (r *Room) syncNetwork() int {
	if len(r.players) == 0 || r.syncEnc == nil {
		return 0
	}

	moving := make([]GameObject, 0, len(r.objects))
	for _, obj := range r.objects {
		if !obj.IsDead() {
			moving = append(moving, obj)
		}
	}
	if len(moving) == 0 {
		return 0
	}

	tag, id, payload := r.syncEnc(moving)
	recipients := make([]Broadcaster, 0, len(r.players))
	for _, p := range r.players {
		recipients = append(recipients, p.Session())
	}
	broadcastShared(r.pool, tag, id, payload, recipients)

	if r.ackEnc != nil {
		for _, p := range r.players {
			tag, id, payload := r.ackEnc(p, r.serverTick)
			pkt := r.pool.Get(tag)
			pkt.ID = id
			pkt.Buf = append(pkt.Buf, payload...)
			p.Session().EnqueueShared(pkt) // releases its own ref on failure
		}
	}

	return len(moving)
}

// broadcastShared serializes payload into one pool-backed packet and fans
// it out to every recipient via AddRef, so fan-out to N recipients costs
// one allocation regardless of N.
func broadcastShared(pool *netmsg.Pool, tag netmsg.Tag, id uint16, payload []byte, recipients []Broadcaster) {
	if len(recipients) == 0 {
		return
	}
	pkt := pool.Get(tag)
	pkt.ID = id
	pkt.Buf = append(pkt.Buf, payload...)

	for _, recv := range recipients {
		pkt.AddRef()
		recv.EnqueueShared(pkt) // releases its own ref on failure
	}
	pkt.DecRef() // release the pool's initial ref now that fan-out holds its own
}
