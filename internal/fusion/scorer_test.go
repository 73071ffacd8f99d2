package fusion

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func behavioralSnapshot() *Snapshot {
	snap := NewSnapshot()
	snap.DeletionRate = 0.7
	snap.PauseSeconds = 25
	snap.ScrollBackCount = 5
	snap.TypingSpeedRatio = 0.3
	return &snap
}

func TestScore_BehavioralOnlyIntervenes(t *testing.T) {
	s := NewScorer(DefaultConfig())
	a := s.Score(behavioralSnapshot())

	if !a.ShouldIntervene {
		t.Fatalf("ShouldIntervene = false, want true (score %v)", a.Score)
	}
	if a.Score <= 0.5 || a.Score > 0.7 {
		t.Errorf("Score = %v, want in (0.5, 0.7]", a.Score)
	}
	if a.UsedAnalysis {
		t.Error("UsedAnalysis = true, want false")
	}
	want := "score=0.59, type=PROCEDURAL_HOW, top_signals=[deletion=0.9, typing=0.7, pause=0.7]"
	if a.Rationale != want {
		t.Errorf("Rationale = %q, want %q", a.Rationale, want)
	}
}

func TestScore_RenormalizesWithoutAnalysis(t *testing.T) {
	cfg := DefaultConfig()
	s := NewScorer(cfg)
	snap := behavioralSnapshot()

	sig := Extract(snap)
	w := cfg.Weights
	behavioral := w.Typing + w.Deletion + w.Pause + w.Reread + w.Verbal + w.Touch
	raw := sig.Typing*w.Typing + sig.Deletion*w.Deletion + sig.Pause*w.Pause +
		sig.Reread*w.Reread + sig.Verbal*w.Verbal + sig.Touch*w.Touch
	want := round3(raw / behavioral)

	a := s.Score(snap)
	if a.Score != want {
		t.Errorf("Score = %v, want %v", a.Score, want)
	}
	if a.Score <= round3(raw) {
		t.Errorf("Score = %v, want more than the un-normalized %v", a.Score, round3(raw))
	}
}

func TestScore_AnalysisUsesFullTable(t *testing.T) {
	s := NewScorer(DefaultConfig())
	snap := behavioralSnapshot()
	snap.Analysis.Understands = []string{"slope"}

	a := s.Score(snap)
	if !a.UsedAnalysis {
		t.Fatal("UsedAnalysis = false, want true")
	}
	// Content signal is zero, so the behavioral part keeps its absolute weight.
	if a.Score != 0.415 {
		t.Errorf("Score = %v, want 0.415", a.Score)
	}
}

func TestScore_AlwaysInRange(t *testing.T) {
	s := NewScorer(DefaultConfig())
	snaps := []Snapshot{
		{},
		{TypingSpeedRatio: -4, DeletionRate: 9, PauseSeconds: 1e6, ScrollBackCount: 400, HelpRequested: true,
			VerbalCues: []string{"I'm so confused"},
			Analysis:   Analysis{Stuck: true, WorkStatus: WorkIncorrect, ConfusedAbout: []string{"a", "b", "c"}, Error: "x"}},
		{TypingSpeedRatio: math.NaN(), DeletionRate: math.Inf(1), PauseSeconds: math.NaN()},
	}
	for i := range snaps {
		a := s.Score(&snaps[i])
		if a.Score < 0 || a.Score > 1 || math.IsNaN(a.Score) {
			t.Errorf("snapshot %d: Score = %v, want within [0,1]", i, a.Score)
		}
	}
}

func TestScore_InterveneOverrides(t *testing.T) {
	s := NewScorer(DefaultConfig())
	tests := []struct {
		name     string
		analysis Analysis
		want     Override
	}{
		{"stuck and incomplete", Analysis{Stuck: true, WorkStatus: WorkIncomplete}, OverrideStuckUnfinished},
		{"incorrect with error", Analysis{WorkStatus: WorkIncorrect, Error: "sign flipped"}, OverrideIncorrectWithErr},
		{"two confused concepts", Analysis{ConfusedAbout: []string{"slope", "intercept"}}, OverrideMultiConfusion},
		{"understands only", Analysis{Understands: []string{"slope"}}, OverrideNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewSnapshot()
			snap.Analysis = tt.analysis
			a := s.Score(&snap)
			if a.Override != tt.want {
				t.Errorf("Override = %q, want %q", a.Override, tt.want)
			}
			if got := tt.want != OverrideNone; a.ShouldIntervene != got {
				t.Errorf("ShouldIntervene = %v, want %v (score %v)", a.ShouldIntervene, got, a.Score)
			}
		})
	}
}

func TestScore_ExplicitTouchAlwaysIntervenes(t *testing.T) {
	s := NewScorer(DefaultConfig())
	snap := NewSnapshot()
	snap.HelpRequested = true

	a := s.Score(&snap)
	if !a.ShouldIntervene {
		t.Error("ShouldIntervene = false, want true")
	}
	if a.Type != TypeConceptualWhy {
		t.Errorf("Type = %s, want %s", a.Type, TypeConceptualWhy)
	}
}

func TestScore_SignalsReported(t *testing.T) {
	s := NewScorer(DefaultConfig())
	snap := behavioralSnapshot()
	snap.VerbalCues = []string{"wait, what?"}

	got := s.Score(snap).Signals
	want := Signals{Typing: 0.7, Deletion: 0.9, Pause: 0.7, Reread: 0.7, Verbal: 0.4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Signals mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.Weights.Content = 0.05
	bad.Weights.Typing = 0.37
	if err := bad.Validate(); err == nil {
		t.Error("expected error when content weight is not the largest")
	}

	bad = DefaultConfig()
	bad.Weights.Pause = 0.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error when weights do not sum to 1")
	}

	bad = DefaultConfig()
	bad.Threshold = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error for threshold outside (0,1)")
	}
}
