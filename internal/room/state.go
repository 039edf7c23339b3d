package room

import "github.com/forgenet/forgenet/internal/netmsg"

// RoomState is the lifecycle stage of a match running inside a Room.
type RoomState int

const (
	// StateLobby is the initial state: players may join, nothing ticks.
	StateLobby RoomState = iota
	// StateReady holds once at least one player has joined, waiting for
	// every current player to report GAME_READY.
	StateReady
	// StateRunning is the only state in which ExecuteUpdate advances
	// gameplay (AI, physics, combat, wave spawning).
	StateRunning
	// StateEnded is terminal: the tick goroutine keeps running so late
	// network I/O still drains, but simulation has stopped permanently.
	StateEnded
)

func (s RoomState) String() string {
	switch s {
	case StateLobby:
		return "LOBBY"
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// StateEncoder serializes a state transition for broadcast to every player
// in the room, the same app-defined-schema pattern as SyncEncoder/AckEncoder.
type StateEncoder func(state RoomState) (tag netmsg.Tag, packetID uint16, payload []byte)
