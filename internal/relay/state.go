package relay

// State of a Session. Transitions only move forward:
// Connecting -> Active -> Closing -> Closed, or Connecting -> Closed on a
// failed spawn.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
