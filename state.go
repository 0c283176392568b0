package relay

// LoopState is the state of the agent loop while it drives one turn.
type LoopState int

const (
	StateAwaitingModel LoopState = iota // Waiting for the model host to respond.
	StateAwaitingTool                   // Waiting for tool host results.
	StateDone                           // Final answer produced, no pending tool calls.
	StateFailed                         // Unrecoverable error.
)

func (s LoopState) String() string {
	switch s {
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateAwaitingTool:
		return "AWAITING_TOOL"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions can happen.
func (s LoopState) Terminal() bool {
	return s == StateDone || s == StateFailed
}
