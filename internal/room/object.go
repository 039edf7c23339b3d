package room

import (
	"github.com/forgenet/forgenet/internal/netmsg"
	"github.com/forgenet/forgenet/internal/room/steering"
)

// GameObject is anything a Room's tick loop moves and broadcasts: a
// spatial-grid citizen with a steering strategy (nil for player-controlled
// objects, which the AI update pass skips entirely).
type GameObject interface {
	ObjectID() uint64
	Position() (x, y float64)
	SetPosition(x, y float64)
	Velocity() (vx, vy float64)
	SetVelocity(vx, vy float64)
	Radius() float64
	MaxSpeed() float64
	IsDead() bool

	// Strategy returns the movement strategy AI-controlled objects steer
	// with, or nil for objects the AI update pass should leave alone.
	Strategy() steering.Strategy
	// Target returns the point a steering strategy should seek, or
	// ok=false if the object currently has none (e.g. no player in range).
	Target() (x, y float64, ok bool)
}

// gridAdapter satisfies spatial.Object on behalf of a GameObject: the
// spatial package is a generic, standalone index with its own naming
// convention, so this thin wrapper is the seam instead of coupling
// spatial's interface to room's.
type gridAdapter struct{ GameObject }

func (g gridAdapter) GridObjectID() uint64            { return g.GameObject.ObjectID() }
func (g gridAdapter) GridPosition() (float64, float64) { return g.GameObject.Position() }

// Unwrap returns the underlying GameObject a spatial query result came
// from.
func (g gridAdapter) Unwrap() GameObject { return g.GameObject }

// Player is a GameObject with a live network session attached, the
// recipient half of a Room's broadcast fan-out.
type Player interface {
	GameObject
	Session() Broadcaster
	LastProcessedClientTick() uint64
	// IsReady reports whether this player has sent GAME_READY for the
	// current match. The room transitions Ready to Running once every
	// current player reports true.
	IsReady() bool
}

// Broadcaster is implemented by a session that can accept a shared,
// AddRef'd packet for its writer goroutine to drain — see
// internal/session.Session.EnqueueShared.
type Broadcaster interface {
	netmsg.SessionRef
	EnqueueShared(pkt *netmsg.Packet) bool
}
