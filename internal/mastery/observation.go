package mastery

import (
	"strings"
	"time"
)

// Observation sources.
const (
	SourceBehavioral            = "behavioral"
	SourceContentAnalysis       = "content_analysis"
	SourceDialogue              = "dialogue"
	SourceDialogueMisconception = "dialogue_misconception"
	SourceDialogueRestatement   = "dialogue_restatement"
	SourceUnknown               = "unknown"
)

// Observation is one unit of evidence about a concept.
type Observation struct {
	ConceptID  string    `json:"concept_id"`
	Correct    bool      `json:"correct"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`

	// Mastery before and after the observation was applied. Zero until
	// the tracker applies it.
	Before float64 `json:"p_know_before,omitempty"`
	After  float64 `json:"p_know_after,omitempty"`
}

// NormalizeConceptID lowercases a free-form concept label and joins words
// with underscores.
func NormalizeConceptID(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}
