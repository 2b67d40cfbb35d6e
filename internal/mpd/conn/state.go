package conn

// State is the connection's position in the idle/command state machine.
type State int32

const (
	Disconnected State = iota
	Connecting
	ConnectedIdle
	ConnectedActive
	ConnectedNonIdle
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case ConnectedIdle:
		return "idle"
	case ConnectedActive:
		return "active"
	case ConnectedNonIdle:
		return "non-idle"
	default:
		return "unknown"
	}
}

// Connected reports whether s is one of the connected states.
func (s State) Connected() bool {
	return s == ConnectedIdle || s == ConnectedActive || s == ConnectedNonIdle
}

// StateChange describes one transition. Err is set when the transition to
// Disconnected was caused by a failure.
type StateChange struct {
	From State
	To   State
	Err  error
}

// IdleResult is what an idle read produced: the changed subsystems, or the
// error that ended it.
type IdleResult struct {
	Subsystems []string
	Err        error
}
