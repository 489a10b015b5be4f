package crawl

// State is the orchestrator's lifecycle position for one run.
type State string

const (
	StateInit        State = "INIT"
	StateDiscovering State = "DISCOVERING"
	StateFetching    State = "FETCHING"
	StateClassifying State = "CLASSIFYING"
	StateAggregating State = "AGGREGATING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
	StateCancelled   State = "CANCELLED"
)

// transitions lists the legal moves. CANCELLED only leads to building the
// partial result, which keeps the state as is.
var transitions = map[State][]State{
	StateInit:        {StateDiscovering, StateFailed},
	StateDiscovering: {StateFetching, StateCancelled},
	StateFetching:    {StateClassifying, StateCancelled},
	StateClassifying: {StateAggregating, StateCancelled},
	StateAggregating: {StateDone},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// CanTransition reports whether moving from s to next is allowed.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
