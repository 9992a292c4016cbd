package processmgr

// State is a supervisor lifecycle state.
//
//	Idle → Starting → Running → Exited → Backoff → Starting → …
//	Starting → Exited            (spawn failure)
//	any → Stopping → Stopped     (shutdown)
//	Idle → Starting → Stopped    (output directory unavailable)
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateExited
	StateBackoff
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateBackoff:
		return "backoff"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// IsTerminal reports whether no further transitions will happen.
func (s State) IsTerminal() bool { return s == StateStopped }

// States lists every state in declaration order.
func States() []State {
	return []State{StateIdle, StateStarting, StateRunning, StateExited, StateBackoff, StateStopping, StateStopped}
}
