package dialogue

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/attune/internal/mastery"
)

// Limits bound a session's length.
type Limits struct {
	MaxTurns    int           `yaml:"max_turns" json:"max_turns"`
	MaxDuration time.Duration `yaml:"max_duration" json:"max_duration"`

	// A session closes as mastered once the last MasteryStreak
	// comprehension scores all exceed StreakThreshold.
	MasteryStreak   int     `yaml:"mastery_streak" json:"mastery_streak"`
	StreakThreshold float64 `yaml:"streak_threshold" json:"streak_threshold"`
}

// DefaultLimits returns the standard session limits.
func DefaultLimits() Limits {
	return Limits{
		MaxTurns:        12,
		MaxDuration:     10 * time.Minute,
		MasteryStreak:   3,
		StreakThreshold: 0.7,
	}
}

func (l Limits) Validate() error {
	var errs []error
	if l.MaxTurns < 2 {
		errs = append(errs, fmt.Errorf("dialogue max_turns must be at least 2, got %d", l.MaxTurns))
	}
	if l.MaxDuration <= 0 {
		errs = append(errs, errors.New("dialogue max_duration must be positive"))
	}
	if l.MasteryStreak < 1 {
		errs = append(errs, fmt.Errorf("dialogue mastery_streak must be at least 1, got %d", l.MasteryStreak))
	}
	if l.StreakThreshold <= 0 || l.StreakThreshold >= 1 {
		errs = append(errs, fmt.Errorf("dialogue streak_threshold must be in (0,1), got %v", l.StreakThreshold))
	}
	return errors.Join(errs...)
}

// Analysis is the judgement of one learner reply.
type Analysis struct {
	Comprehension         float64 `json:"comprehension"`
	RestatedInOwnWords    bool    `json:"restated_in_own_words"`
	RemainingConfusion    string  `json:"remaining_confusion,omitempty"`
	MisconceptionDetected string  `json:"misconception_detected,omitempty"`
	EngagementLevel       string  `json:"engagement_level"`
}

// NeutralAnalysis is substituted when a reply cannot be analysed.
func NeutralAnalysis() Analysis {
	return Analysis{Comprehension: 0.5, EngagementLevel: "medium"}
}

// Turn is one message in the conversation. State is the session state
// at the moment the turn was recorded.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	State     State     `json:"state"`
	Analysis  *Analysis `json:"analysis,omitempty"`
}

// ConfusionModel is the running picture of what the learner gets and
// what they don't.
type ConfusionModel struct {
	InitialHypothesis      string   `json:"initial_hypothesis"`
	RefinedHypothesis      string   `json:"refined_hypothesis"`
	ConfirmedUnderstanding []string `json:"confirmed_understanding"`
	RemainingGaps          []string `json:"remaining_gaps"`
	ApproachesTried        []string `json:"approaches_tried"`
}

// restatementLimit caps how much of a restating reply is kept as
// confirmed understanding.
const restatementLimit = 100

// Session is one multi-turn tutoring conversation about a concept. All
// methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id            string
	userID        string
	concept       string
	state         State
	turns         []Turn
	model         ConfusionModel
	comprehension []float64
	startedAt     time.Time
	limits        Limits
	trigger       Trigger
	now           func() time.Time
}

// Trigger is the work context that opened the session.
type Trigger struct {
	ScreenContent string `json:"screen_content,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// NewSession creates a session in the initiating state. now may be nil.
func NewSession(id, userID, concept, hypothesis string, trigger Trigger, limits Limits, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:        id,
		userID:    userID,
		concept:   concept,
		state:     StateInitiating,
		model:     ConfusionModel{InitialHypothesis: hypothesis},
		startedAt: now(),
		limits:    limits,
		trigger:   trigger,
		now:       now,
	}
}

func (s *Session) ID() string      { return s.id }
func (s *Session) UserID() string  { return s.userID }
func (s *Session) Concept() string { return s.concept }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TurnCount counts agent and user turns.
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Elapsed is the time since the session started.
func (s *Session) Elapsed() time.Duration {
	return s.now().Sub(s.startedAt)
}

// AddAgentTurn records a tutor message.
func (s *Session) AddAgentTurn(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: RoleAgent, Content: content, Timestamp: s.now(), State: s.state})
}

// AddUserTurn records a learner reply and folds its analysis into the
// confusion model. A nil analysis records the text only.
func (s *Session) AddUserTurn(content string, a *Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Turn{Role: RoleUser, Content: content, Timestamp: s.now(), State: s.state}
	if a == nil {
		s.turns = append(s.turns, t)
		return
	}
	cp := *a
	cp.Comprehension = clampUnit(cp.Comprehension)
	t.Analysis = &cp
	s.turns = append(s.turns, t)
	s.comprehension = append(s.comprehension, cp.Comprehension)

	if cp.MisconceptionDetected != "" {
		s.model.RemainingGaps = append(s.model.RemainingGaps, cp.MisconceptionDetected)
	}
	if cp.RestatedInOwnWords {
		s.model.ConfirmedUnderstanding = append(s.model.ConfirmedUnderstanding, truncateRunes(content, restatementLimit))
	}
	if cp.RemainingConfusion != "" {
		s.model.RefinedHypothesis = cp.RemainingConfusion
	}
}

// NoteApproach appends an entry to the approaches tried.
func (s *Session) NoteApproach(approach string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model.ApproachesTried = append(s.model.ApproachesTried, approach)
}

// NextState computes the state the session would move to without
// moving it.
func (s *Session) NextState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextState()
}

// Advance moves the session to NextState and returns it.
func (s *Session) Advance() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.nextState()
	return s.state
}

func (s *Session) nextState() State {
	if _, ok := s.closeReason(); ok {
		return StateClosing
	}
	last, hasLast := s.lastComprehension()
	switch s.state {
	case StateInitiating:
		return StateExploring
	case StateExploring:
		if s.model.RefinedHypothesis != "" {
			return StateExplaining
		}
		return StateExploring
	case StateExplaining:
		if hasLast && last > 0.6 {
			return StateChecking
		}
		return StateExplaining
	case StateChecking:
		if hasLast && last > 0.7 {
			return StateClosing
		}
		return StateExplaining
	default:
		return s.state
	}
}

// ShouldClose reports whether any closing condition holds.
func (s *Session) ShouldClose() bool {
	_, ok := s.CloseReason()
	return ok
}

// CloseReason returns the first closing condition that holds, checked in
// the order max_turns, timeout, mastered. When none holds it returns
// (CloseUserClosed, false).
func (s *Session) CloseReason() (CloseReason, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeReason()
}

func (s *Session) closeReason() (CloseReason, bool) {
	if len(s.turns) >= s.limits.MaxTurns {
		return CloseMaxTurns, true
	}
	if s.now().Sub(s.startedAt) > s.limits.MaxDuration {
		return CloseTimeout, true
	}
	if n := s.limits.MasteryStreak; n > 0 && len(s.comprehension) >= n {
		streak := true
		for _, c := range s.comprehension[len(s.comprehension)-n:] {
			if c <= s.limits.StreakThreshold {
				streak = false
				break
			}
		}
		if streak {
			return CloseMastered, true
		}
	}
	return CloseUserClosed, false
}

func (s *Session) lastComprehension() (float64, bool) {
	if len(s.comprehension) == 0 {
		return 0, false
	}
	return s.comprehension[len(s.comprehension)-1], true
}

// FinalComprehension is the 1,2,3-weighted mean of the last three
// comprehension scores, rounded to three decimals; 0 with no scores.
func (s *Session) FinalComprehension() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalComprehension()
}

func (s *Session) finalComprehension() float64 {
	recent := s.comprehension
	if len(recent) == 0 {
		return 0
	}
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	var sum, total float64
	for i, c := range recent {
		w := float64(i + 1)
		sum += c * w
		total += w
	}
	return math.Round(sum/total*1000) / 1000
}

// Observations converts every analysed learner turn into mastery
// evidence for the session concept.
func (s *Session) Observations() []mastery.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observations()
}

func (s *Session) observations() []mastery.Observation {
	var out []mastery.Observation
	obs := func(correct bool, confidence float64, source string, ts time.Time) {
		out = append(out, mastery.Observation{
			ConceptID:  s.concept,
			Correct:    correct,
			Confidence: confidence,
			Source:     source,
			Timestamp:  ts,
		})
	}
	for _, t := range s.turns {
		if t.Role != RoleUser || t.Analysis == nil {
			continue
		}
		obs(t.Analysis.Comprehension > 0.5, t.State.ObservationConfidence(), mastery.SourceDialogue, t.Timestamp)
		if t.Analysis.MisconceptionDetected != "" {
			obs(false, 0.9, mastery.SourceDialogueMisconception, t.Timestamp)
		}
		if t.Analysis.RestatedInOwnWords {
			obs(true, 0.85, mastery.SourceDialogueRestatement, t.Timestamp)
		}
	}
	return out
}

// History renders the conversation for prompts.
func (s *Session) History() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]string, len(s.turns))
	for i, t := range s.turns {
		who := "Tutor"
		if t.Role == RoleUser {
			who = "Student"
		}
		lines[i] = who + ": " + t.Content
	}
	return strings.Join(lines, "\n")
}

// Model returns a copy of the confusion model.
func (s *Session) Model() ConfusionModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyModel()
}

func (s *Session) copyModel() ConfusionModel {
	m := s.model
	m.ConfirmedUnderstanding = slices.Clone(m.ConfirmedUnderstanding)
	m.RemainingGaps = slices.Clone(m.RemainingGaps)
	m.ApproachesTried = slices.Clone(m.ApproachesTried)
	return m
}

// View is a read-only copy of a session.
type View struct {
	ID            string         `json:"session_id"`
	UserID        string         `json:"user_id"`
	Concept       string         `json:"concept"`
	State         State          `json:"state"`
	Turns         []Turn         `json:"turns"`
	Model         ConfusionModel `json:"confusion_model"`
	Comprehension []float64      `json:"comprehension"`
	StartedAt     time.Time      `json:"started_at"`
	Trigger       Trigger        `json:"trigger"`
}

// View snapshots the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := slices.Clone(s.turns)
	for i := range turns {
		if a := turns[i].Analysis; a != nil {
			cp := *a
			turns[i].Analysis = &cp
		}
	}
	return View{
		ID:            s.id,
		UserID:        s.userID,
		Concept:       s.concept,
		State:         s.state,
		Turns:         turns,
		Model:         s.copyModel(),
		Comprehension: slices.Clone(s.comprehension),
		StartedAt:     s.startedAt,
		Trigger:       s.trigger,
	}
}

func clampUnit(x float64) float64 {
	if math.IsNaN(x) {
		return 0.5
	}
	return math.Max(0, math.Min(1, x))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
