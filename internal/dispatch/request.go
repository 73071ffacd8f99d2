package dispatch

import (
	"time"

	"github.com/abhisek/attune/internal/fusion"
	"github.com/abhisek/attune/internal/mastery"
	"github.com/abhisek/attune/internal/scheduler"
)

// screenLimit caps the screen text forwarded to handlers.
const screenLimit = 1000

// Context is the snapshot-derived situation a handler responds to.
type Context struct {
	Topic         string               `json:"topic"`
	Subtopic      string               `json:"subtopic,omitempty"`
	ScreenContent string               `json:"screen_content,omitempty"`
	ContentType   fusion.ContentType   `json:"content_type,omitempty"`
	Mode          fusion.Mode          `json:"mode"`
	UserMessage   string               `json:"user_message,omitempty"`
	Notes         string               `json:"notes,omitempty"`
	Hypothesis    string               `json:"hypothesis,omitempty"`
	ConfusionType fusion.ConfusionType `json:"confusion_type,omitempty"`
	Score         float64              `json:"score"`
}

// NewContext derives a handler context from a snapshot and its
// assessment.
func NewContext(snap *fusion.Snapshot, topic, hypothesis string, a fusion.Assessment) Context {
	screen := []rune(snap.ScreenContent)
	if len(screen) > screenLimit {
		screen = screen[:screenLimit]
	}
	return Context{
		Topic:         topic,
		Subtopic:      snap.Subtopic,
		ScreenContent: string(screen),
		ContentType:   snap.ContentType,
		Mode:          snap.Analysis.Mode,
		UserMessage:   snap.UserMessage,
		Notes:         snap.Analysis.Notes,
		Hypothesis:    hypothesis,
		ConfusionType: a.Type,
		Score:         a.Score,
	}
}

// RoutedRequest is what the scheduler hands to a handler when it fires.
type RoutedRequest struct {
	ID                 string           `json:"id"`
	UserID             string           `json:"user_id"`
	SessionID          string           `json:"session_id,omitempty"`
	Target             scheduler.Target `json:"target"`
	Context            Context          `json:"context"`
	Mastery            float64          `json:"mastery"`
	MasteryQuality     mastery.Tier     `json:"mastery_quality"`
	TriggerReason      scheduler.Reason `json:"trigger_reason"`
	RecentObservations []string         `json:"recent_observations"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Tool is the form an intervention takes.
type Tool string

const (
	ToolQuestion      Tool = "question"
	ToolVisualization Tool = "visualization"
	ToolVoiceCall     Tool = "voice_call"
	ToolHint          Tool = "hint"
	ToolDialogue      Tool = "dialogue"
)

// Intervention is the content delivered to the learner.
type Intervention struct {
	ID        string           `json:"id"`
	RequestID string           `json:"request_id"`
	UserID    string           `json:"user_id"`
	Target    scheduler.Target `json:"target"`
	Tool      Tool             `json:"tool"`
	Topic     string           `json:"topic"`
	Reason    scheduler.Reason `json:"trigger_reason"`
	Mastery   float64          `json:"mastery"`
	Content   string           `json:"content"`
	Fallback  bool             `json:"fallback,omitempty"`

	// DialogueSessionID is set when the intervention opened a tutoring
	// dialogue.
	DialogueSessionID string    `json:"dialogue_session_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
