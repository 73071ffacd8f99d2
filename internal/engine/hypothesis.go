package engine

import (
	"fmt"
	"strings"

	"github.com/abhisek/attune/internal/fusion"
)

const defaultHypothesis = "general confusion detected"

var signalPhrases = map[string]string{
	"pause":    "long pauses (stuck)",
	"deletion": "lots of backspacing (trial and error)",
	"reread":   "re-reading content (not understanding)",
	"typing":   "slow typing (hesitating)",
	"content":  "screen analysis detected confusion",
	"verbal":   "said they were confused",
	"touch":    "asked for help",
}

// BuildHypothesis summarizes why the learner seems confused, for the
// tutor's opening turn.
func BuildHypothesis(snap *fusion.Snapshot, a fusion.Assessment) string {
	var parts []string
	an := snap.Analysis
	if len(an.ConfusedAbout) > 0 {
		parts = append(parts, "confused about: "+strings.Join(an.ConfusedAbout, ", "))
	}
	if e := strings.TrimSpace(an.Error); e != "" {
		parts = append(parts, "error in work: "+e)
	}
	if an.Stuck {
		parts = append(parts, "appears stuck")
	}
	if an.Status() == fusion.WorkIncorrect {
		parts = append(parts, "work appears incorrect")
	}
	if n := strings.TrimSpace(an.Notes); n != "" {
		parts = append(parts, "notes: "+n)
	}
	if m := strings.TrimSpace(snap.UserMessage); m != "" {
		parts = append(parts, fmt.Sprintf("user said: '%s'", m))
	}
	if a.Type != "" {
		parts = append(parts, "confusion type: "+string(a.Type))
	}

	var signals []string
	ranked := a.Signals.Ranked()
	for _, s := range ranked[:min(2, len(ranked))] {
		if s.Value <= 0.3 {
			continue
		}
		if p, ok := signalPhrases[s.Name]; ok {
			signals = append(signals, p)
		}
	}
	if len(signals) > 0 {
		parts = append(parts, "behavioral signals: "+strings.Join(signals, ", "))
	}

	if len(parts) == 0 {
		return defaultHypothesis
	}
	return strings.Join(parts, "; ")
}
