package mastery

import (
	"math"
	"testing"
	"time"
)

func newTestTracker() *Tracker {
	p := DefaultParams()
	p.IdleTTL = 0
	return NewTracker(p)
}

func TestUpdate_CorrectRaisesIncorrectLowers(t *testing.T) {
	tr := newTestTracker()
	up := tr.Update("slope", true, 1.0, SourceDialogue)
	if up.PKnow <= 0.3 {
		t.Errorf("PKnow after correct = %v, want > 0.3", up.PKnow)
	}

	tr2 := newTestTracker()
	down := tr2.Update("slope", false, 1.0, SourceDialogue)
	// The learn transition still applies, but the posterior drop dominates.
	if down.PKnow >= 0.3 {
		t.Errorf("PKnow after incorrect = %v, want < 0.3", down.PKnow)
	}
}

func TestUpdate_KnownValue(t *testing.T) {
	tr := newTestTracker()
	// posterior = 0.27 / (0.27 + 0.175) = 0.6067; learn: 0.6067 + 0.3933*0.1
	want := 0.27/0.445 + (1-0.27/0.445)*0.1
	got := tr.Update("slope", true, 1.0, SourceDialogue).PKnow
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("PKnow = %v, want %v", got, want)
	}
}

func TestUpdate_ZeroConfidenceOnlyLearns(t *testing.T) {
	tr := newTestTracker()
	got := tr.Update("slope", false, 0, SourceBehavioral).PKnow
	want := 0.3 + 0.7*0.1
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("PKnow = %v, want %v", got, want)
	}

	got = newTestTracker().Update("slope", true, math.NaN(), "").PKnow
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("NaN confidence: PKnow = %v, want %v", got, want)
	}
}

func TestUpdate_HigherConfidenceMovesMore(t *testing.T) {
	confidences := []float64{0, 0.25, 0.5, 0.75, 1.0}
	gains := make([]float64, len(confidences))
	for i, c := range confidences {
		up := newTestTracker().Update("slope", true, c, SourceDialogue)
		gains[i] = up.PKnow - up.Before
	}
	for i := 1; i < len(gains); i++ {
		if gains[i] <= gains[i-1] {
			t.Errorf("gain at confidence %v = %v, want > %v (confidence %v)",
				confidences[i], gains[i], gains[i-1], confidences[i-1])
		}
	}
}

func TestUpdate_StaysInBounds(t *testing.T) {
	tr := newTestTracker()
	for range 200 {
		p := tr.Update("a", true, 5, SourceDialogue).PKnow
		if p < minPKnow || p > maxPKnow {
			t.Fatalf("PKnow = %v, outside [%v,%v]", p, minPKnow, maxPKnow)
		}
	}
	for range 200 {
		p := tr.Update("b", false, 1, SourceDialogue).PKnow
		if p < minPKnow || p > maxPKnow {
			t.Fatalf("PKnow = %v, outside [%v,%v]", p, minPKnow, maxPKnow)
		}
	}
}

func TestUpdate_ReachesMastery(t *testing.T) {
	tr := newTestTracker()
	for range 20 {
		tr.Update("gradient_descent", true, 1.0, SourceDialogue)
	}
	if !tr.IsMastered("gradient_descent", 0) {
		t.Errorf("IsMastered = false after 20 correct, mastery %v", tr.Mastery("gradient_descent"))
	}
	q := tr.Quality("gradient_descent")
	if q.Tier != TierHigh || q.Total != 20 || q.Sources[SourceDialogue] != 20 {
		t.Errorf("Quality = %+v, want high tier over 20 dialogue observations", q)
	}
	if tr.IsMastered("gradient_descent", 0.9999) {
		t.Error("IsMastered above the clamp ceiling = true, want false")
	}
}

func TestUpdate_AdaptiveLearnRate(t *testing.T) {
	tr := newTestTracker()
	for range 30 {
		tr.Update("up", true, 0.9, SourceDialogue)
	}
	rec, _ := tr.Record("up")
	if rec.PLearn != maxLearn {
		t.Errorf("PLearn after long streak = %v, want cap %v", rec.PLearn, maxLearn)
	}

	for range 30 {
		tr.Update("down", false, 0.9, SourceDialogue)
	}
	rec, _ = tr.Record("down")
	if rec.PLearn != minLearn {
		t.Errorf("PLearn after long failure streak = %v, want floor %v", rec.PLearn, minLearn)
	}

	// Two observations are not enough to adapt.
	tr.Update("short", true, 1, SourceDialogue)
	tr.Update("short", true, 1, SourceDialogue)
	rec, _ = tr.Record("short")
	if rec.PLearn != 0.1 {
		t.Errorf("PLearn after two observations = %v, want 0.1", rec.PLearn)
	}

	// Low-confidence correct streaks do not boost.
	for range 3 {
		tr.Update("weak", true, 0.35, SourceBehavioral)
	}
	rec, _ = tr.Record("weak")
	if rec.PLearn != 0.1 {
		t.Errorf("PLearn after weak streak = %v, want 0.1", rec.PLearn)
	}
}

func TestUpdate_RecordsObservation(t *testing.T) {
	tr := newTestTracker()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixed }

	up := tr.Update("slope", true, 0.8, SourceContentAnalysis)
	rec, ok := tr.Record("slope")
	if !ok {
		t.Fatal("Record not found")
	}
	if len(rec.Observations) != 1 {
		t.Fatalf("len(Observations) = %d, want 1", len(rec.Observations))
	}
	o := rec.Observations[0]
	if o.Before != 0.3 || o.After != up.PKnow {
		t.Errorf("Before/After = %v/%v, want 0.3/%v", o.Before, o.After, up.PKnow)
	}
	if o.Source != SourceContentAnalysis || !o.Timestamp.Equal(fixed) {
		t.Errorf("Observation = %+v", o)
	}
}

func TestMastery_UnknownConcept(t *testing.T) {
	tr := newTestTracker()
	if got := tr.Mastery("never-seen"); got != 0 {
		t.Errorf("Mastery = %v, want 0", got)
	}
	if tr.IsMastered("never-seen", 0) {
		t.Error("IsMastered = true for unknown concept")
	}
	if q := tr.Quality("never-seen"); q.Tier != TierNoData || q.Total != 0 {
		t.Errorf("Quality = %+v, want no_data", q)
	}
	if len(tr.Concepts()) != 0 {
		t.Error("read-only calls created a record")
	}
}

func TestQualityTiers(t *testing.T) {
	obs := func(n int, c float64) []Observation {
		out := make([]Observation, n)
		for i := range out {
			out[i].Confidence = c
		}
		return out
	}
	tests := []struct {
		name string
		obs  []Observation
		want Tier
	}{
		{"none", nil, TierNoData},
		{"five confident", obs(5, 0.7), TierHigh},
		{"five weak", obs(5, 0.5), TierMedium},
		{"three medium", obs(3, 0.4), TierMedium},
		{"three weak", obs(3, 0.35), TierLow},
		{"one", obs(1, 0.9), TierLow},
	}
	for _, tt := range tests {
		if got := qualityOf(tt.obs).Tier; got != tt.want {
			t.Errorf("%s: quality = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestTransitions(t *testing.T) {
	tr := newTestTracker()
	first := tr.Update("x", true, 1, SourceDialogue)
	if first.Transition == nil || first.Transition.Trigger != "first-observation" || first.Transition.To != StateLearning {
		t.Fatalf("first transition = %+v", first.Transition)
	}

	var crossed *StateTransition
	for range 20 {
		if up := tr.Update("x", true, 1, SourceDialogue); up.Transition != nil {
			crossed = up.Transition
		}
	}
	if crossed == nil || crossed.Trigger != "threshold-crossed" || crossed.To != StateMastered {
		t.Fatalf("crossing transition = %+v", crossed)
	}

	var lost *StateTransition
	for range 5 {
		if up := tr.Update("x", false, 1, SourceDialogue); up.Transition != nil && lost == nil {
			lost = up.Transition
		}
	}
	if lost == nil || lost.To != StateSlipping || lost.Trigger != "threshold-lost" {
		t.Fatalf("slip transition = %+v", lost)
	}
}

func TestApplyBatch(t *testing.T) {
	tr := newTestTracker()
	trs := tr.Apply([]Observation{
		{ConceptID: "slope", Correct: true, Confidence: 0.85, Source: SourceDialogueRestatement},
		{ConceptID: "", Correct: true, Confidence: 1},
		{ConceptID: "intercept", Correct: false, Confidence: 0.9, Source: SourceDialogueMisconception},
	})
	if len(trs) != 2 {
		t.Fatalf("len(transitions) = %d, want 2", len(trs))
	}
	got := tr.Concepts()
	if len(got) != 2 {
		t.Fatalf("Concepts = %v, want two entries", got)
	}
	if got["slope"] <= 0.3 || got["intercept"] >= 0.3 {
		t.Errorf("Concepts = %v, want slope raised and intercept lowered", got)
	}
}

func TestIdleEviction(t *testing.T) {
	p := DefaultParams()
	p.IdleTTL = 10 * time.Millisecond
	tr := NewTracker(p)
	tr.Update("slope", true, 1, SourceDialogue)
	time.Sleep(30 * time.Millisecond)
	if got := tr.Mastery("slope"); got != 0 {
		t.Errorf("Mastery after idle = %v, want 0", got)
	}
}

func TestNormalizeConceptID(t *testing.T) {
	tests := map[string]string{
		"Chain Rule":           "chain_rule",
		"  gradient  descent ": "gradient_descent",
		"slope":                "slope",
		"":                     "",
	}
	for in, want := range tests {
		if got := NormalizeConceptID(in); got != want {
			t.Errorf("NormalizeConceptID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	p := DefaultParams()
	p.Guess, p.Slip = 0.6, 0.5
	if p.Validate() == nil {
		t.Error("expected error when guess+slip >= 1")
	}
	p = DefaultParams()
	p.Prior = 0
	if p.Validate() == nil {
		t.Error("expected error for zero prior")
	}
}

func TestResolveBand(t *testing.T) {
	tests := []struct {
		p    float64
		want Band
	}{
		{0, BandLow}, {0.29, BandLow}, {0.3, BandMedium}, {0.69, BandMedium}, {0.7, BandHigh}, {1, BandHigh},
	}
	for _, tt := range tests {
		if got := ResolveBand(tt.p); got != tt.want {
			t.Errorf("ResolveBand(%v) = %s, want %s", tt.p, got, tt.want)
		}
	}
}
