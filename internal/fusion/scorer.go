package fusion

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Weights is the fusion weight table. The seven weights sum to 1.0.
type Weights struct {
	Typing   float64 `yaml:"typing" json:"typing"`
	Deletion float64 `yaml:"deletion" json:"deletion"`
	Pause    float64 `yaml:"pause" json:"pause"`
	Reread   float64 `yaml:"reread" json:"reread"`
	Verbal   float64 `yaml:"verbal" json:"verbal"`
	Touch    float64 `yaml:"touch" json:"touch"`
	Content  float64 `yaml:"content" json:"content"`
}

func (w Weights) behavioral() float64 {
	return w.Typing + w.Deletion + w.Pause + w.Reread + w.Verbal + w.Touch
}

// Config holds the fusion thresholds.
type Config struct {
	Weights Weights `yaml:"weights" json:"weights"`

	// Threshold is the fused score above which the learner gets help.
	Threshold float64 `yaml:"threshold" json:"threshold"`

	// LowFloor is the score below which the learner is classified as
	// extending rather than confused.
	LowFloor float64 `yaml:"low_floor" json:"low_floor"`
}

// DefaultConfig returns the production weight table and thresholds.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Typing:   0.12,
			Deletion: 0.15,
			Pause:    0.15,
			Reread:   0.13,
			Verbal:   0.10,
			Touch:    0.05,
			Content:  0.30,
		},
		Threshold: 0.5,
		LowFloor:  0.3,
	}
}

// Validate checks the weight table and thresholds.
func (c Config) Validate() error {
	w := c.Weights
	var errs []error
	for name, v := range map[string]float64{
		"typing": w.Typing, "deletion": w.Deletion, "pause": w.Pause,
		"reread": w.Reread, "verbal": w.Verbal, "touch": w.Touch, "content": w.Content,
	} {
		if v < 0 || math.IsNaN(v) {
			errs = append(errs, fmt.Errorf("fusion weight %s must be non-negative, got %v", name, v))
		}
	}
	if w.behavioral() <= 0 {
		errs = append(errs, errors.New("fusion behavioral weights must not all be zero"))
	}
	if sum := w.behavioral() + w.Content; math.Abs(sum-1.0) > 1e-6 {
		errs = append(errs, fmt.Errorf("fusion weights must sum to 1.0, got %.4f", sum))
	}
	for _, v := range []float64{w.Typing, w.Deletion, w.Pause, w.Reread, w.Verbal, w.Touch} {
		if v > w.Content {
			errs = append(errs, errors.New("fusion content weight must be the largest"))
			break
		}
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("fusion threshold must be in (0,1), got %v", c.Threshold))
	}
	if c.LowFloor < 0 || c.LowFloor >= 1 {
		errs = append(errs, fmt.Errorf("fusion low_floor must be in [0,1), got %v", c.LowFloor))
	}
	return errors.Join(errs...)
}

// Override names the content-analysis condition that forced an intervention.
type Override string

const (
	OverrideNone             Override = ""
	OverrideStuckUnfinished  Override = "stuck-unfinished"
	OverrideIncorrectWithErr Override = "incorrect-with-error"
	OverrideMultiConfusion   Override = "multi-confusion"
)

// Assessment is the outcome of fusing one snapshot.
type Assessment struct {
	Score           float64       `json:"score"`
	Type            ConfusionType `json:"type"`
	ShouldIntervene bool          `json:"should_intervene"`
	Signals         Signals       `json:"signals"`
	Rationale       string        `json:"rationale"`
	Rule            string        `json:"rule"`
	Override        Override      `json:"override,omitempty"`
	UsedAnalysis    bool          `json:"used_analysis"`
}

// Scorer fuses snapshot signals into an Assessment. It holds no state
// beyond its configuration and is safe for concurrent use.
type Scorer struct {
	cfg   Config
	rules []Rule
}

// NewScorer creates a scorer with the default rule list.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg, rules: DefaultRules()}
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score fuses a snapshot into an assessment.
func (s *Scorer) Score(snap *Snapshot) Assessment {
	sig := Extract(snap)
	w := s.cfg.Weights

	hasAnalysis := snap.Analysis.Present()
	var score float64
	if hasAnalysis {
		score = sig.Typing*w.Typing +
			sig.Deletion*w.Deletion +
			sig.Pause*w.Pause +
			sig.Reread*w.Reread +
			sig.Verbal*w.Verbal +
			sig.Touch*w.Touch +
			sig.Content*w.Content
	} else {
		total := w.behavioral()
		score = (sig.Typing*w.Typing +
			sig.Deletion*w.Deletion +
			sig.Pause*w.Pause +
			sig.Reread*w.Reread +
			sig.Verbal*w.Verbal +
			sig.Touch*w.Touch) / total
	}
	score = clamp01(score)

	in := &RuleInput{Snapshot: snap, Signals: sig, Score: score, LowFloor: s.cfg.LowFloor}
	kind, rule := RunRules(s.rules, in)

	override := contentOverride(snap.Analysis)
	intervene := snap.HelpRequested || score > s.cfg.Threshold || override != OverrideNone

	sig = roundSignals(sig)
	return Assessment{
		Score:           round3(score),
		Type:            kind,
		ShouldIntervene: intervene,
		Signals:         sig,
		Rationale:       rationale(score, kind, sig),
		Rule:            rule,
		Override:        override,
		UsedAnalysis:    hasAnalysis,
	}
}

// contentOverride reports the direct-observation condition that forces
// an intervention regardless of the fused score.
func contentOverride(a Analysis) Override {
	status := a.Status()
	switch {
	case a.Stuck && (status == WorkIncorrect || status == WorkIncomplete):
		return OverrideStuckUnfinished
	case status == WorkIncorrect && strings.TrimSpace(a.Error) != "":
		return OverrideIncorrectWithErr
	case len(a.ConfusedAbout) >= 2:
		return OverrideMultiConfusion
	default:
		return OverrideNone
	}
}

func rationale(score float64, kind ConfusionType, sig Signals) string {
	var top []string
	for _, ns := range sig.Ranked()[:3] {
		if ns.Value > 0.3 {
			top = append(top, fmt.Sprintf("%s=%v", ns.Name, ns.Value))
		}
	}
	return fmt.Sprintf("score=%.2f, type=%s, top_signals=[%s]", score, kind, strings.Join(top, ", "))
}

func roundSignals(s Signals) Signals {
	return Signals{
		Typing:   round3(s.Typing),
		Deletion: round3(s.Deletion),
		Pause:    round3(s.Pause),
		Reread:   round3(s.Reread),
		Verbal:   round3(s.Verbal),
		Touch:    round3(s.Touch),
		Content:  round3(s.Content),
	}
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
