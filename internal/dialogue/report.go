package dialogue

import (
	"math"

	"github.com/abhisek/attune/internal/mastery"
)

// Report summarizes a closed session for the mastery tracker.
type Report struct {
	SessionID          string                `json:"session_id"`
	UserID             string                `json:"user_id"`
	Concept            string                `json:"concept"`
	TurnCount          int                   `json:"turns_count"`
	FinalComprehension float64               `json:"final_comprehension"`
	Observations       []mastery.Observation `json:"observations"`
	DurationSeconds    float64               `json:"duration_seconds"`
	CloseReason        CloseReason           `json:"close_reason"`
}

// Report builds the closing report with the given reason.
func (s *Session) Report(reason CloseReason) Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Report{
		SessionID:          s.id,
		UserID:             s.userID,
		Concept:            s.concept,
		TurnCount:          len(s.turns),
		FinalComprehension: s.finalComprehension(),
		Observations:       s.observations(),
		DurationSeconds:    math.Round(s.now().Sub(s.startedAt).Seconds()*10) / 10,
		CloseReason:        reason,
	}
}
