package fusion

import (
	"strings"
	"time"
)

// ContentType tags what kind of material is on the learner's screen.
type ContentType string

const (
	ContentCode     ContentType = "code"
	ContentEquation ContentType = "equation"
	ContentText     ContentType = "text"
	ContentDiagram  ContentType = "diagram"
	ContentMixed    ContentType = "mixed"
)

// Visual reports whether the content is equation or diagram material.
func (c ContentType) Visual() bool {
	return c == ContentEquation || c == ContentDiagram
}

// Symbolic reports whether the content is code or equation material.
func (c ContentType) Symbolic() bool {
	return c == ContentCode || c == ContentEquation
}

// WorkStatus is the content-analysis verdict on the learner's work.
type WorkStatus string

const (
	WorkUnknown    WorkStatus = ""
	WorkCorrect    WorkStatus = "correct"
	WorkIncorrect  WorkStatus = "incorrect"
	WorkIncomplete WorkStatus = "incomplete"
	WorkUnclear    WorkStatus = "unclear"
)

// Mode is the learner's current activity as labelled by content analysis.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeConceptual
	ModeApplied
	ModeConsolidation
)

// ParseMode maps a free-text mode label onto the closed Mode set.
// Unrecognised labels map to ModeUnknown.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "conceptual":
		return ModeConceptual
	case "applied":
		return ModeApplied
	case "consolidation":
		return ModeConsolidation
	default:
		return ModeUnknown
	}
}

func (m Mode) String() string {
	switch m {
	case ModeConceptual:
		return "conceptual"
	case ModeApplied:
		return "applied"
	case ModeConsolidation:
		return "consolidation"
	default:
		return ""
	}
}

// MarshalText encodes the mode as its label.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a label, mapping unknown labels to ModeUnknown.
func (m *Mode) UnmarshalText(b []byte) error {
	*m = ParseMode(string(b))
	return nil
}

// Analysis holds the fields supplied by the content-analysis collaborator.
type Analysis struct {
	Stuck         bool       `json:"stuck,omitempty" yaml:"stuck,omitempty"`
	WorkStatus    WorkStatus `json:"work_status,omitempty" yaml:"work_status,omitempty"`
	Understands   []string   `json:"understands,omitempty" yaml:"understands,omitempty"`
	ConfusedAbout []string   `json:"confused_about,omitempty" yaml:"confused_about,omitempty"`
	Error         string     `json:"error,omitempty" yaml:"error,omitempty"`
	Mode          Mode       `json:"mode,omitempty" yaml:"mode,omitempty"`
	Notes         string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	NaturalPause  *bool      `json:"natural_pause,omitempty" yaml:"natural_pause,omitempty"`
}

// Status returns the work status normalised to lower case.
func (a Analysis) Status() WorkStatus {
	return WorkStatus(strings.ToLower(strings.TrimSpace(string(a.WorkStatus))))
}

// Present reports whether any content-analysis field carries a non-default value.
func (a Analysis) Present() bool {
	status := a.Status()
	return a.Stuck ||
		(status != WorkUnknown && status != WorkUnclear) ||
		len(a.ConfusedAbout) > 0 ||
		len(a.Understands) > 0 ||
		strings.TrimSpace(a.Error) != ""
}

// Snapshot is a point-in-time observation of the learner.
type Snapshot struct {
	UserID    string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`

	ScreenContent string      `json:"screen_content,omitempty" yaml:"screen_content,omitempty"`
	ContentType   ContentType `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Topic         string      `json:"topic,omitempty" yaml:"topic,omitempty"`
	Subtopic      string      `json:"subtopic,omitempty" yaml:"subtopic,omitempty"`

	TypingSpeedRatio float64 `json:"typing_speed_ratio" yaml:"typing_speed_ratio"`
	DeletionRate     float64 `json:"deletion_rate" yaml:"deletion_rate"`
	PauseSeconds     float64 `json:"pause_duration" yaml:"pause_duration"`
	ScrollBackCount  int     `json:"scroll_back_count" yaml:"scroll_back_count"`

	VerbalCues    []string `json:"verbal_cues,omitempty" yaml:"verbal_cues,omitempty"`
	UserMessage   string   `json:"user_message,omitempty" yaml:"user_message,omitempty"`
	HelpRequested bool     `json:"help_requested,omitempty" yaml:"help_requested,omitempty"`

	Analysis Analysis `json:"analysis" yaml:"analysis"`
}

// NewSnapshot returns a snapshot with the neutral behavioral baseline
// (typing at baseline speed, no deletions, no pause).
func NewSnapshot() Snapshot {
	return Snapshot{TypingSpeedRatio: 1.0, ContentType: ContentText}
}
