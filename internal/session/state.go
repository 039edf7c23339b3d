// Package session implements the per-connection session pool, state
// machine, and the stream buffers (RecvBuffer, SendQueue) a transport
// drives a session with.
package session

import "fmt"

// State is a session's lifecycle stage. Sessions only move forward:
// Pooled -> Live -> Draining -> Dead. A session recycled back to the pool
// is reset to Pooled by the pool, not by the session itself.
type State int32

const (
	StatePooled State = iota
	StateLive
	StateDraining
	StateDead
)

func (s State) String() string {
	switch s {
	case StatePooled:
		return "pooled"
	case StateLive:
		return "live"
	case StateDraining:
		return "draining"
	case StateDead:
		return "dead"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
