package room

import (
	"testing"

	"github.com/forgenet/forgenet/internal/netmsg"
	"github.com/forgenet/forgenet/internal/room/steering"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	id       uint64
	x, y     float64
	vx, vy   float64
	radius   float64
	maxSpeed float64
	dead     bool
	strategy steering.Strategy
	tx, ty   float64
	hasTgt   bool
}

func (o *fakeObject) ObjectID() uint64              { return o.id }
func (o *fakeObject) Position() (float64, float64)  { return o.x, o.y }
func (o *fakeObject) SetPosition(x, y float64)      { o.x, o.y = x, y }
func (o *fakeObject) Velocity() (float64, float64)  { return o.vx, o.vy }
func (o *fakeObject) SetVelocity(vx, vy float64)     { o.vx, o.vy = vx, vy }
func (o *fakeObject) Radius() float64                { return o.radius }
func (o *fakeObject) MaxSpeed() float64              { return o.maxSpeed }
func (o *fakeObject) IsDead() bool                   { return o.dead }
func (o *fakeObject) Strategy() steering.Strategy    { return o.strategy }
func (o *fakeObject) Target() (float64, float64, bool) { return o.tx, o.ty, o.hasTgt }

type fakeBroadcaster struct {
	id       uint64
	received []*netmsg.Packet
	decRefs  int
}

func (f *fakeBroadcaster) DecRef()    { f.decRefs++ }
func (f *fakeBroadcaster) ID() uint64 { return f.id }
func (f *fakeBroadcaster) EnqueueShared(pkt *netmsg.Packet) bool {
	f.received = append(f.received, pkt)
	return true
}

type fakePlayer struct {
	*fakeObject
	sess     *fakeBroadcaster
	lastTick uint64
	ready    bool
}

func (p *fakePlayer) Session() Broadcaster           { return p.sess }
func (p *fakePlayer) LastProcessedClientTick() uint64 { return p.lastTick }
func (p *fakePlayer) IsReady() bool                   { return p.ready }

func TestExecuteUpdateMovesObjectTowardTarget(t *testing.T) {
	pool := netmsg.NewPool(2, 16)
	r := New(1, 0, 10, pool)
	r.state = StateRunning

	monster := &fakeObject{id: 1, x: 0, y: 0, maxSpeed: 10, radius: 1,
		strategy: steering.CellBased{}, tx: 10, ty: 0, hasTgt: true}
	r.AddObject(monster)

	r.ExecuteUpdate(1.0)

	x, y := monster.Position()
	require.Greater(t, x, 0.0)
	require.Equal(t, 0.0, y)
}

func TestExecuteUpdateSkipsDeadObjects(t *testing.T) {
	pool := netmsg.NewPool(2, 16)
	r := New(1, 0, 10, pool)
	r.state = StateRunning

	dead := &fakeObject{id: 1, x: 5, y: 5, dead: true, strategy: steering.CellBased{}, hasTgt: true, tx: 100, ty: 100}
	r.AddObject(dead)

	r.ExecuteUpdate(1.0)

	x, y := dead.Position()
	require.Equal(t, 5.0, x)
	require.Equal(t, 5.0, y)
}

func TestSyncNetworkBroadcastsOneAllocationToAllPlayers(t *testing.T) {
	pool := netmsg.NewPool(2, 16)
	r := New(1, 0, 10, pool)
	r.SetEncoders(func(objs []GameObject) (netmsg.Tag, uint16, []byte) {
		return netmsg.TagNetworkData, 42, []byte("sync")
	}, nil)

	obj := &fakeObject{id: 1, x: 1, y: 1, maxSpeed: 5}
	r.AddObject(obj)

	players := make([]*fakePlayer, 3)
	for i := range players {
		sess := &fakeBroadcaster{id: uint64(i + 1)}
		p := &fakePlayer{fakeObject: &fakeObject{id: uint64(100 + i), x: 0, y: 0}, sess: sess}
		players[i] = p
		r.AddPlayer(p)
	}
	r.state = StateRunning

	before := pool.Stats().Created
	r.ExecuteUpdate(1.0)
	after := pool.Stats().Created

	require.LessOrEqual(t, after-before, int64(1), "broadcast to 3 players must not allocate more than one packet")

	for _, p := range players {
		require.Len(t, p.sess.received, 1)
		require.Equal(t, uint16(42), p.sess.received[0].ID)
	}
}

func TestRebuildGridRemovesDeadObjects(t *testing.T) {
	pool := netmsg.NewPool(2, 16)
	r := New(1, 0, 10, pool)
	r.state = StateRunning

	obj := &fakeObject{id: 1, x: 0, y: 0}
	r.AddObject(obj)
	require.Equal(t, 1, r.Grid().count())

	obj.dead = true
	r.ExecuteUpdate(1.0)
	require.Equal(t, 0, r.Grid().count())
}

func TestRoomStartsInLobbyAndMovesToReadyOnFirstPlayer(t *testing.T) {
	pool := netmsg.NewPool(2, 16)
	r := New(1, 0, 10, pool)
	require.Equal(t, StateLobby, r.State())

	p := &fakePlayer{fakeObject: &fakeObject{id: 1}, sess: &fakeBroadcaster{id: 1}}
	r.AddPlayer(p)
	require.Equal(t, StateReady, r.State())
}

func TestRoomTransitionsToRunningOnceAllPlayersReady(t *testing.T) {
	pool := netmsg.NewPool(2, 16)
	r := New(1, 0, 10, pool)

	p1 := &fakePlayer{fakeObject: &fakeObject{id: 1}, sess: &fakeBroadcaster{id: 1}}
	p2 := &fakePlayer{fakeObject: &fakeObject{id: 2}, sess: &fakeBroadcaster{id: 2}}
	r.AddPlayer(p1)
	r.AddPlayer(p2)
	require.Equal(t, StateReady, r.State())

	r.ExecuteUpdate(1.0)
	require.Equal(t, StateReady, r.State(), "must stay Ready until every player is GAME_READY")

	p1.ready = true
	r.ExecuteUpdate(1.0)
	require.Equal(t, StateReady, r.State())

	p2.ready = true
	r.ExecuteUpdate(1.0)
	require.Equal(t, StateRunning, r.State())
}

func TestRoomEndsWhenAllPlayersDie(t *testing.T) {
	pool := netmsg.NewPool(2, 16)
	r := New(1, 0, 10, pool)

	p := &fakePlayer{fakeObject: &fakeObject{id: 1}, sess: &fakeBroadcaster{id: 1}, ready: true}
	r.AddPlayer(p)
	r.ExecuteUpdate(1.0) // Ready -> Running
	require.Equal(t, StateRunning, r.State())

	p.dead = true
	r.ExecuteUpdate(1.0)
	require.Equal(t, StateEnded, r.State())
}

func TestRoomStateTransitionsBroadcastToPlayers(t *testing.T) {
	pool := netmsg.NewPool(2, 16)
	r := New(1, 0, 10, pool)
	r.SetStateEncoder(func(state RoomState) (netmsg.Tag, uint16, []byte) {
		return netmsg.TagNetworkData, 99, []byte(state.String())
	})

	sess := &fakeBroadcaster{id: 1}
	p := &fakePlayer{fakeObject: &fakeObject{id: 1}, sess: sess, ready: true}
	r.AddPlayer(p) // Lobby -> Ready

	require.Len(t, sess.received, 1)
	require.Equal(t, uint16(99), sess.received[0].ID)
}

func TestStopForcesEndedState(t *testing.T) {
	pool := netmsg.NewPool(2, 16)
	r := New(1, 0, 10, pool)
	r.state = StateRunning

	r.Stop()
	require.Equal(t, StateEnded, r.State())

	r.ExecuteUpdate(1.0) // must be a no-op once Ended
	require.Equal(t, StateEnded, r.State())
}
