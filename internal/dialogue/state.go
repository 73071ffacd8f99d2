package dialogue

// State is a position in the tutoring conversation.
type State string

const (
	StateInitiating State = "initiating"
	StateExploring  State = "exploring"
	StateExplaining State = "explaining"
	StateChecking   State = "checking"
	StateClosing    State = "closing"
)

// ObservationConfidence is how much a comprehension reading taken in
// this state counts as mastery evidence.
func (s State) ObservationConfidence() float64 {
	switch s {
	case StateInitiating:
		return 0.2
	case StateExploring:
		return 0.3
	case StateExplaining:
		return 0.5
	case StateChecking:
		return 0.85
	case StateClosing:
		return 0.8
	default:
		return 0.3
	}
}

// CloseReason explains why a session ended.
type CloseReason string

const (
	CloseMaxTurns   CloseReason = "max_turns"
	CloseTimeout    CloseReason = "timeout"
	CloseMastered   CloseReason = "mastered"
	CloseUserClosed CloseReason = "user_closed"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)
