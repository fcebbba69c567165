package collection

// LoadState tracks the list fetch.
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadLoading
	LoadLoaded
)

func (s LoadState) String() string {
	switch s {
	case LoadIdle:
		return "idle"
	case LoadLoading:
		return "loading"
	case LoadLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Phase is the state of one optimistic mutation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseOptimistic
	PhaseConfirmed
	PhaseReconciling
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOptimistic:
		return "optimistic"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseReconciling:
		return "reconciling"
	default:
		return "unknown"
	}
}

// transitions lists the phases reachable from each phase.
var transitions = map[Phase][]Phase{
	PhaseIdle:        {PhaseOptimistic},
	PhaseOptimistic:  {PhaseConfirmed, PhaseReconciling},
	PhaseConfirmed:   {PhaseIdle},
	PhaseReconciling: {PhaseIdle},
}

// CanTransition reports whether to is reachable from p in one step.
func (p Phase) CanTransition(to Phase) bool {
	for _, next := range transitions[p] {
		if next == to {
			return true
		}
	}
	return false
}
