package scheduler

import "github.com/abhisek/attune/internal/fusion"

// Target names the handler an intervention is sent to.
type Target string

const (
	TargetConceptual Target = "conceptual"
	TargetApplied    Target = "applied"
	TargetExtension  Target = "extension"
)

// Route maps the learner's mode to a handler. Conceptual is the default
// since most time is spent building understanding.
func Route(m fusion.Mode) Target {
	switch m {
	case fusion.ModeApplied:
		return TargetApplied
	case fusion.ModeConsolidation:
		return TargetExtension
	case fusion.ModeConceptual, fusion.ModeUnknown:
		return TargetConceptual
	default:
		return TargetConceptual
	}
}
