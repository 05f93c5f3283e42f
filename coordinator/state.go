package coordinator

// State is the orchestrator's position in a turn.
type State int

const (
	StateIdle State = iota
	StateSending
	StateAwaitingModel
	StateToolCallPending
	StateExecutingTools
	StateAwaitingFollowUp
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSending:
		return "Sending"
	case StateAwaitingModel:
		return "AwaitingModel"
	case StateToolCallPending:
		return "ToolCallPending"
	case StateExecutingTools:
		return "ExecutingTools"
	case StateAwaitingFollowUp:
		return "AwaitingFollowUp"
	default:
		return "Unknown"
	}
}
