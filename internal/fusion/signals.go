package fusion

import (
	"math"
	"sort"
	"strings"
)

// Signals holds the per-channel sub-scores, each in [0,1].
type Signals struct {
	Typing   float64 `json:"typing"`
	Deletion float64 `json:"deletion"`
	Pause    float64 `json:"pause"`
	Reread   float64 `json:"reread"`
	Verbal   float64 `json:"verbal"`
	Touch    float64 `json:"touch"`
	Content  float64 `json:"content"`
}

// NamedSignal pairs a signal name with its value.
type NamedSignal struct {
	Name  string
	Value float64
}

// Ranked returns the signals ordered by value, highest first. Ties keep
// the declaration order.
func (s Signals) Ranked() []NamedSignal {
	out := []NamedSignal{
		{"typing", s.Typing},
		{"deletion", s.Deletion},
		{"pause", s.Pause},
		{"reread", s.Reread},
		{"verbal", s.Verbal},
		{"touch", s.Touch},
		{"content", s.Content},
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// Phrase weights for spoken or typed confusion cues.
var verbalCueWeights = map[string]float64{
	"confused":         0.8,
	"don't understand": 0.9,
	"lost":             0.7,
	"stuck":            0.7,
	"what":             0.4,
	"huh":              0.6,
	"wait":             0.3,
	"hmm":              0.3,
	"no idea":          0.9,
	"makes no sense":   0.9,
	"help":             0.6,
}

var visualKeywords = []string{
	"visual", "visualize", "graph", "plot", "diagram", "picture",
	"image", "shape", "geometry", "spatial", "3d", "surface",
	"draw", "sketch", "see", "look like", "imagine",
}

var conceptualKeywords = []string{
	"why", "concept", "understand", "meaning", "intuition",
	"reason", "explain", "theory", "fundamental", "abstract",
	"idea", "principle", "logic", "proof",
}

var proceduralKeywords = []string{
	"how", "steps", "procedure", "process", "method",
	"algorithm", "implement", "code", "solve", "calculate",
	"compute", "formula", "equation", "syntax",
}

// TypingSignal maps the typing-speed ratio against baseline to a sub-score.
// Slower than baseline scores higher. A non-positive ratio means no
// baseline was measured and scores 0.8.
func TypingSignal(ratio float64) float64 {
	if ratio <= 0 {
		return 0.8
	}
	return max(0, 1-ratio)
}

// DeletionSignal maps the fraction of keystrokes that were deletions.
func DeletionSignal(rate float64) float64 {
	switch {
	case rate > 0.6:
		return 0.9
	case rate > 0.4:
		return 0.6
	case rate > 0.2:
		return 0.3
	default:
		return max(0, rate)
	}
}

// PauseSignal maps seconds since the last input.
func PauseSignal(seconds float64) float64 {
	switch {
	case seconds > 30:
		return 0.95
	case seconds > 15:
		return 0.7
	case seconds > 8:
		return 0.5
	case seconds > 3:
		return 0.2
	default:
		return 0
	}
}

// RereadSignal maps the scroll-back count.
func RereadSignal(count int) float64 {
	switch {
	case count >= 8:
		return 1.0
	case count >= 4:
		return 0.7
	case count >= 2:
		return 0.4
	case count >= 1:
		return 0.2
	default:
		return 0
	}
}

// VerbalSignal returns the highest phrase weight found in any cue.
func VerbalSignal(cues ...string) float64 {
	var best float64
	for _, cue := range cues {
		lower := strings.ToLower(strings.TrimSpace(cue))
		if lower == "" {
			continue
		}
		for phrase, w := range verbalCueWeights {
			if w > best && strings.Contains(lower, phrase) {
				best = w
			}
		}
	}
	return best
}

// ContentSignal folds the content-analysis verdict into one sub-score.
func ContentSignal(a Analysis) float64 {
	var score float64
	if a.Stuck {
		score += 0.6
	}
	switch a.Status() {
	case WorkIncorrect:
		score += 0.7
	case WorkIncomplete:
		score += 0.2
	}
	if n := len(a.ConfusedAbout); n > 0 {
		score += min(0.5, float64(n)*0.25)
	}
	if strings.TrimSpace(a.Error) != "" {
		score += 0.3
	}
	return min(1, score)
}

// Extract computes every sub-score for a snapshot.
func Extract(snap *Snapshot) Signals {
	cues := append([]string(nil), snap.VerbalCues...)
	if snap.UserMessage != "" {
		cues = append(cues, snap.UserMessage)
	}
	s := Signals{
		Typing:   TypingSignal(finite(snap.TypingSpeedRatio, 1)),
		Deletion: DeletionSignal(finite(snap.DeletionRate, 0)),
		Pause:    PauseSignal(finite(snap.PauseSeconds, 0)),
		Reread:   RereadSignal(snap.ScrollBackCount),
		Verbal:   VerbalSignal(cues...),
		Content:  ContentSignal(snap.Analysis),
	}
	if snap.HelpRequested {
		s.Touch = 1.0
	}
	return s
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// finite replaces NaN and infinite readings with a neutral value.
func finite(v, neutral float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return neutral
	}
	return v
}
