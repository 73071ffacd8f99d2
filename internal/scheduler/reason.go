package scheduler

// Reason tags a decision.
type Reason string

// Reasons produced by the decision chain, in priority order.
const (
	ReasonCooldown        Reason = "cooldown"
	ReasonTopicTransition Reason = "topic_transition"
	ReasonModeChange      Reason = "mode_change"
	ReasonExplicitRequest Reason = "explicit_request"
	ReasonConfusion       Reason = "confusion"
	ReasonNaturalPause    Reason = "natural_pause"
	ReasonStuck           Reason = "stuck"
	ReasonFallback        Reason = "fallback"
	ReasonNotYet          Reason = "not_yet"
)

// Outcomes decided before the chain runs.
const (
	// ReasonSkipped marks a snapshot with nothing to act on.
	ReasonSkipped Reason = "skipped"
	// ReasonInDialogue marks a snapshot from a learner who is already
	// talking to the tutor.
	ReasonInDialogue Reason = "in_dialogue"
)

// Fires reports whether the reason leads to an intervention.
func (r Reason) Fires() bool {
	switch r {
	case ReasonTopicTransition, ReasonModeChange, ReasonExplicitRequest,
		ReasonConfusion, ReasonNaturalPause, ReasonStuck, ReasonFallback:
		return true
	default:
		return false
	}
}

// Decision is the outcome of one tick.
type Decision struct {
	Fire   bool   `json:"fire"`
	Reason Reason `json:"reason"`
}

func decide(r Reason) Decision {
	return Decision{Fire: r.Fires(), Reason: r}
}
