package dialogue

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abhisek/attune/internal/mastery"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSession(limits Limits) (*Session, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	s := NewSession("s1", "u1", "gradient_descent", "learning rate", Trigger{}, limits, clk.now)
	return s, clk
}

func reply(s *Session, comprehension float64, confusion string) {
	s.AddUserTurn("reply", &Analysis{Comprehension: comprehension, RemainingConfusion: confusion, EngagementLevel: "medium"})
}

func TestSession_Transitions(t *testing.T) {
	s, _ := newTestSession(DefaultLimits())

	if got := s.State(); got != StateInitiating {
		t.Fatalf("initial state = %q, want initiating", got)
	}
	s.AddAgentTurn("hi")
	if got := s.Advance(); got != StateExploring {
		t.Fatalf("after opening = %q, want exploring", got)
	}

	reply(s, 0.3, "")
	if got := s.Advance(); got != StateExploring {
		t.Errorf("no refined hypothesis: state = %q, want exploring", got)
	}

	reply(s, 0.3, "why the step size matters")
	if got := s.Advance(); got != StateExplaining {
		t.Errorf("refined hypothesis: state = %q, want explaining", got)
	}

	reply(s, 0.5, "")
	if got := s.Advance(); got != StateExplaining {
		t.Errorf("low comprehension: state = %q, want explaining", got)
	}

	reply(s, 0.65, "")
	if got := s.Advance(); got != StateChecking {
		t.Errorf("comprehension 0.65: state = %q, want checking", got)
	}

	reply(s, 0.6, "")
	if got := s.Advance(); got != StateExplaining {
		t.Errorf("failed check: state = %q, want explaining", got)
	}

	reply(s, 0.7, "")
	if got := s.Advance(); got != StateChecking {
		t.Errorf("comprehension 0.7: state = %q, want checking", got)
	}

	reply(s, 0.75, "")
	if got := s.Advance(); got != StateClosing {
		t.Errorf("passed check: state = %q, want closing", got)
	}
}

func TestSession_NextStateDoesNotMove(t *testing.T) {
	s, _ := newTestSession(DefaultLimits())
	if got := s.NextState(); got != StateExploring {
		t.Errorf("NextState = %q, want exploring", got)
	}
	if got := s.State(); got != StateInitiating {
		t.Errorf("State = %q, want initiating", got)
	}
}

func TestSession_ClosesMasteredAfterStreak(t *testing.T) {
	s, _ := newTestSession(DefaultLimits())
	s.AddAgentTurn("hi")
	s.Advance()

	reply(s, 0.8, "x")
	reply(s, 0.9, "")
	if s.ShouldClose() {
		t.Fatal("closed after two high scores")
	}
	reply(s, 0.75, "")

	reason, ok := s.CloseReason()
	if !ok || reason != CloseMastered {
		t.Errorf("CloseReason = (%q, %v), want (mastered, true)", reason, ok)
	}
	if got := s.Advance(); got != StateClosing {
		t.Errorf("state = %q, want closing", got)
	}
}

func TestSession_StreakBrokenByThreshold(t *testing.T) {
	s, _ := newTestSession(DefaultLimits())
	reply(s, 0.9, "")
	reply(s, 0.7, "")
	reply(s, 0.9, "")
	if s.ShouldClose() {
		t.Error("a score equal to the threshold must break the streak")
	}
}

func TestSession_ClosesAtMaxTurns(t *testing.T) {
	s, _ := newTestSession(DefaultLimits())
	for i := 0; i < 6; i++ {
		s.AddAgentTurn("q")
		if i < 5 && s.ShouldClose() {
			t.Fatalf("closed early at %d turns", s.TurnCount())
		}
		reply(s, 0.2, "")
	}
	if got := s.TurnCount(); got != 12 {
		t.Fatalf("TurnCount = %d, want 12", got)
	}
	reason, ok := s.CloseReason()
	if !ok || reason != CloseMaxTurns {
		t.Errorf("CloseReason = (%q, %v), want (max_turns, true)", reason, ok)
	}
}

func TestSession_ClosesOnTimeout(t *testing.T) {
	s, clk := newTestSession(DefaultLimits())
	reply(s, 0.2, "")

	clk.advance(10 * time.Minute)
	if s.ShouldClose() {
		t.Error("closed at exactly the max duration")
	}
	clk.advance(time.Second)
	reason, ok := s.CloseReason()
	if !ok || reason != CloseTimeout {
		t.Errorf("CloseReason = (%q, %v), want (timeout, true)", reason, ok)
	}
}

func TestSession_CloseReasonOrder(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxTurns = 3
	s, clk := newTestSession(limits)
	reply(s, 0.9, "")
	reply(s, 0.9, "")
	reply(s, 0.9, "")
	clk.advance(time.Hour)

	if reason, _ := s.CloseReason(); reason != CloseMaxTurns {
		t.Errorf("CloseReason = %q, want max_turns first", reason)
	}
}

func TestSession_UserClosedWhenNothingHolds(t *testing.T) {
	s, _ := newTestSession(DefaultLimits())
	reason, ok := s.CloseReason()
	if ok || reason != CloseUserClosed {
		t.Errorf("CloseReason = (%q, %v), want (user_closed, false)", reason, ok)
	}
}

func TestSession_ConfusionModel(t *testing.T) {
	s, _ := newTestSession(DefaultLimits())
	long := strings.Repeat("é", 150)
	s.AddUserTurn(long, &Analysis{
		Comprehension:         0.6,
		RestatedInOwnWords:    true,
		RemainingConfusion:    "momentum",
		MisconceptionDetected: "thinks bigger steps always converge faster",
	})
	s.NoteApproach("Turn 2: exploring")

	got := s.Model()
	want := ConfusionModel{
		InitialHypothesis:      "learning rate",
		RefinedHypothesis:      "momentum",
		ConfirmedUnderstanding: []string{strings.Repeat("é", 100)},
		RemainingGaps:          []string{"thinks bigger steps always converge faster"},
		ApproachesTried:        []string{"Turn 2: exploring"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Model() mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_UserTurnWithoutAnalysis(t *testing.T) {
	s, _ := newTestSession(DefaultLimits())
	s.AddUserTurn("hello", nil)
	if got := s.TurnCount(); got != 1 {
		t.Errorf("TurnCount = %d, want 1", got)
	}
	if got := s.FinalComprehension(); got != 0 {
		t.Errorf("FinalComprehension = %v, want 0", got)
	}
	if got := len(s.Observations()); got != 0 {
		t.Errorf("observations = %d, want 0", got)
	}
}

func TestSession_ComprehensionClamped(t *testing.T) {
	s, _ := newTestSession(DefaultLimits())
	reply(s, 1.7, "")
	reply(s, -3, "")
	v := s.View()
	if diff := cmp.Diff([]float64{1, 0}, v.Comprehension); diff != "" {
		t.Errorf("comprehension (-want +got):\n%s", diff)
	}
}

func TestSession_FinalComprehension(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{0.4}, 0.4},
		{"two", []float64{0.3, 0.6}, 0.5},
		{"last three weighted", []float64{0.2, 0.5, 0.8, 0.9}, 0.8},
		{"rounded", []float64{0.1, 0.2, 0.4}, 0.283},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(DefaultLimits())
			for _, c := range tt.scores {
				reply(s, c, "")
			}
			if got := s.FinalComprehension(); got != tt.want {
				t.Errorf("FinalComprehension = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSession_Observations(t *testing.T) {
	s, clk := newTestSession(DefaultLimits())
	s.AddAgentTurn("hi")
	s.Advance() // exploring

	reply(s, 0.4, "gradients")
	ts := clk.t
	s.Advance() // explaining

	s.AddUserTurn("so the slope tells you which way to step", &Analysis{
		Comprehension:      0.8,
		RestatedInOwnWords: true,
	})
	s.Advance() // checking

	s.AddUserTurn("it always converges", &Analysis{
		Comprehension:         0.3,
		MisconceptionDetected: "ignores divergence",
	})

	got := s.Observations()
	want := []mastery.Observation{
		{ConceptID: "gradient_descent", Correct: false, Confidence: 0.3, Source: mastery.SourceDialogue, Timestamp: ts},
		{ConceptID: "gradient_descent", Correct: true, Confidence: 0.5, Source: mastery.SourceDialogue, Timestamp: ts},
		{ConceptID: "gradient_descent", Correct: true, Confidence: 0.85, Source: mastery.SourceDialogueRestatement, Timestamp: ts},
		{ConceptID: "gradient_descent", Correct: false, Confidence: 0.85, Source: mastery.SourceDialogue, Timestamp: ts},
		{ConceptID: "gradient_descent", Correct: false, Confidence: 0.9, Source: mastery.SourceDialogueMisconception, Timestamp: ts},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Observations mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_Report(t *testing.T) {
	s, clk := newTestSession(DefaultLimits())
	s.AddAgentTurn("hi")
	reply(s, 0.9, "")
	clk.advance(83*time.Second + 270*time.Millisecond)

	r := s.Report(CloseUserClosed)
	if r.TurnCount != 2 {
		t.Errorf("TurnCount = %d, want 2", r.TurnCount)
	}
	if r.DurationSeconds != 83.3 {
		t.Errorf("DurationSeconds = %v, want 83.3", r.DurationSeconds)
	}
	if r.FinalComprehension != 0.9 {
		t.Errorf("FinalComprehension = %v, want 0.9", r.FinalComprehension)
	}
	if r.CloseReason != CloseUserClosed || r.SessionID != "s1" || r.UserID != "u1" {
		t.Errorf("unexpected report header: %+v", r)
	}
	if len(r.Observations) != 1 {
		t.Errorf("observations = %d, want 1", len(r.Observations))
	}
}

func TestSession_History(t *testing.T) {
	s, _ := newTestSession(DefaultLimits())
	s.AddAgentTurn("What's tripping you up?")
	s.AddUserTurn("the learning rate", nil)
	want := "Tutor: What's tripping you up?\nStudent: the learning rate"
	if got := s.History(); got != want {
		t.Errorf("History = %q, want %q", got, want)
	}
}

func TestLimits_Validate(t *testing.T) {
	if err := DefaultLimits().Validate(); err != nil {
		t.Errorf("default limits invalid: %v", err)
	}
	bad := Limits{MaxTurns: 1, MaxDuration: 0, MasteryStreak: 0, StreakThreshold: 1}
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, field := range []string{"max_turns", "max_duration", "mastery_streak", "streak_threshold"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}
