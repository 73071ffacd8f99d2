package mastery

// MasteryState represents a concept's position in the mastery lifecycle.
type MasteryState string

const (
	StateNew      MasteryState = "new"
	StateLearning MasteryState = "learning"
	StateMastered MasteryState = "mastered"
	StateSlipping MasteryState = "slipping"
)

// StateTransition records a mastery state change for logging and publishing.
type StateTransition struct {
	ConceptID string       `json:"concept_id"`
	From      MasteryState `json:"from"`
	To        MasteryState `json:"to"`
	Mastery   float64      `json:"mastery"`
	Source    string       `json:"source"`
	Trigger   string       `json:"trigger"` // "first-observation", "threshold-crossed", "threshold-lost", "recovered"
}

// stateFor derives the lifecycle state after an update.
func stateFor(prev MasteryState, pKnow, threshold float64) MasteryState {
	switch {
	case pKnow >= threshold:
		return StateMastered
	case prev == StateMastered || prev == StateSlipping:
		return StateSlipping
	default:
		return StateLearning
	}
}

func triggerFor(from, to MasteryState) string {
	switch {
	case from == StateNew:
		return "first-observation"
	case to == StateMastered && from == StateSlipping:
		return "recovered"
	case to == StateMastered:
		return "threshold-crossed"
	default:
		return "threshold-lost"
	}
}
