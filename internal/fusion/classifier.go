package fusion

import "strings"

// ConfusionType is the kind of help an assessment calls for.
type ConfusionType string

const (
	TypeVisualSpatial ConfusionType = "VISUAL_SPATIAL"
	TypeConceptualWhy ConfusionType = "CONCEPTUAL_WHY"
	TypeProceduralHow ConfusionType = "PROCEDURAL_HOW"
	TypeNoneExtending ConfusionType = "NONE_EXTENDING"
)

// RuleInput is everything a classification rule may inspect.
type RuleInput struct {
	Snapshot *Snapshot
	Signals  Signals
	Score    float64
	// LowFloor is the score below which a learner counts as doing well.
	LowFloor float64

	message string
}

func (in *RuleInput) lowerMessage() string {
	if in.message == "" {
		in.message = strings.ToLower(strings.TrimSpace(in.Snapshot.UserMessage))
	}
	return in.message
}

// Rule is one entry of the priority-ordered classification list.
// Classify returns ("", false) when the rule does not apply.
type Rule interface {
	Name() string
	Classify(in *RuleInput) (ConfusionType, bool)
}

// DefaultRules returns the classification rules in priority order.
// Explicit requests outrank content analysis, which outranks
// behavioral proxies.
func DefaultRules() []Rule {
	return []Rule{
		touchKeywordRule{name: "touch-visual", keywords: visualKeywords, kind: TypeVisualSpatial},
		touchKeywordRule{name: "touch-conceptual", keywords: conceptualKeywords, kind: TypeConceptualWhy},
		touchKeywordRule{name: "touch-procedural", keywords: proceduralKeywords, kind: TypeProceduralHow},
		touchRule{},
		incorrectWorkRule{},
		stuckVisualRule{},
		stuckConfusedRule{},
		visualRereadRule{},
		pauseVerbalRule{},
		deletionRule{},
		lowScoreRule{},
		defaultRule{},
	}
}

// RunRules evaluates rules in order and returns the first match with the
// name of the rule that produced it.
func RunRules(rules []Rule, in *RuleInput) (ConfusionType, string) {
	for _, r := range rules {
		if kind, ok := r.Classify(in); ok {
			return kind, r.Name()
		}
	}
	return TypeConceptualWhy, "none"
}

type touchKeywordRule struct {
	name     string
	keywords []string
	kind     ConfusionType
}

func (r touchKeywordRule) Name() string { return r.name }

func (r touchKeywordRule) Classify(in *RuleInput) (ConfusionType, bool) {
	if !in.Snapshot.HelpRequested {
		return "", false
	}
	msg := in.lowerMessage()
	if msg == "" || !containsAny(msg, r.keywords) {
		return "", false
	}
	return r.kind, true
}

// touchRule covers an explicit request with no recognisable wording.
type touchRule struct{}

func (touchRule) Name() string { return "touch" }

func (touchRule) Classify(in *RuleInput) (ConfusionType, bool) {
	if in.Snapshot.HelpRequested {
		return TypeConceptualWhy, true
	}
	return "", false
}

type incorrectWorkRule struct{}

func (incorrectWorkRule) Name() string { return "incorrect-work" }

func (incorrectWorkRule) Classify(in *RuleInput) (ConfusionType, bool) {
	if in.Snapshot.Analysis.Status() != WorkIncorrect {
		return "", false
	}
	if in.Snapshot.ContentType.Symbolic() {
		return TypeProceduralHow, true
	}
	return TypeConceptualWhy, true
}

type stuckVisualRule struct{}

func (stuckVisualRule) Name() string { return "stuck-visual" }

func (stuckVisualRule) Classify(in *RuleInput) (ConfusionType, bool) {
	if in.Snapshot.Analysis.Stuck && in.Snapshot.ContentType.Visual() {
		return TypeVisualSpatial, true
	}
	return "", false
}

type stuckConfusedRule struct{}

func (stuckConfusedRule) Name() string { return "stuck-confused" }

func (stuckConfusedRule) Classify(in *RuleInput) (ConfusionType, bool) {
	a := in.Snapshot.Analysis
	if a.Stuck && len(a.ConfusedAbout) > 0 {
		return TypeConceptualWhy, true
	}
	return "", false
}

type visualRereadRule struct{}

func (visualRereadRule) Name() string { return "visual-reread" }

func (visualRereadRule) Classify(in *RuleInput) (ConfusionType, bool) {
	if in.Snapshot.ContentType.Visual() && in.Signals.Reread > 0.5 {
		return TypeVisualSpatial, true
	}
	return "", false
}

type pauseVerbalRule struct{}

func (pauseVerbalRule) Name() string { return "pause-verbal" }

func (pauseVerbalRule) Classify(in *RuleInput) (ConfusionType, bool) {
	if in.Signals.Pause > 0.5 && in.Signals.Verbal > 0.3 {
		return TypeConceptualWhy, true
	}
	return "", false
}

type deletionRule struct{}

func (deletionRule) Name() string { return "deletion" }

func (deletionRule) Classify(in *RuleInput) (ConfusionType, bool) {
	if in.Signals.Deletion > 0.6 {
		return TypeProceduralHow, true
	}
	return "", false
}

// lowScoreRule marks a learner who is doing well as a candidate for a
// stretch challenge rather than remediation.
type lowScoreRule struct{}

func (lowScoreRule) Name() string { return "low-score" }

func (lowScoreRule) Classify(in *RuleInput) (ConfusionType, bool) {
	if in.Score < in.LowFloor {
		return TypeNoneExtending, true
	}
	return "", false
}

type defaultRule struct{}

func (defaultRule) Name() string { return "default" }

func (defaultRule) Classify(*RuleInput) (ConfusionType, bool) {
	return TypeConceptualWhy, true
}
