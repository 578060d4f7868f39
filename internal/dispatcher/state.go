package dispatcher

// State is the interception state of one template instance.
type State int

const (
	StateCreated State = iota
	StateParseRequested
	// StatePrepared means the instance was rewritten to the twig proxy.
	StatePrepared
	// StateSkipped means a listener or the skip list left the instance untouched.
	StateSkipped
	// StateNotFound means no twig template exists; the legacy engine renders it.
	StateNotFound
	StateRenderRequested
	StateRendered
	StateFailed
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateParseRequested:
		return "parse_requested"
	case StatePrepared:
		return "prepared"
	case StateSkipped:
		return "skipped"
	case StateNotFound:
		return "not_found"
	case StateRenderRequested:
		return "render_requested"
	case StateRendered:
		return "rendered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible for the
// parse or render phase.
func (s State) Terminal() bool {
	switch s {
	case StateSkipped, StateNotFound, StateRendered, StateFailed:
		return true
	default:
		return false
	}
}

// StateRecorder is implemented by instances that track their interception
// state.
type StateRecorder interface {
	SetState(State)
}

func record(instance any, state State) {
	if r, ok := instance.(StateRecorder); ok {
		r.SetState(state)
	}
}
