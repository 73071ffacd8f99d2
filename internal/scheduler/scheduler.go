package scheduler

import (
	"strings"
	"sync"
	"time"

	"github.com/abhisek/attune/internal/fusion"
)

// State is the scheduler's bookkeeping.
type State struct {
	LastIntervention time.Time   `json:"last_intervention"`
	Topic            string      `json:"topic"`
	TopicSince       time.Time   `json:"topic_since"`
	Mode             fusion.Mode `json:"mode"`
	ConsecutiveStuck int         `json:"consecutive_stuck"`
	Prompts          int         `json:"prompts"`
	Recent           []string    `json:"recent_observations"`
}

// Scheduler decides when to intervene. It is driven by a single control
// loop; the mutex only protects readers taking a Snapshot.
type Scheduler struct {
	mu    sync.Mutex
	cfg   Config
	state State
	obs   *ring
}

// New creates a scheduler with empty bookkeeping.
func New(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg, obs: newRing(cfg.BufferSize)}
}

// Config returns the active configuration.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig swaps the thresholds. Bookkeeping is kept; the observation
// buffer keeps its newest entries that still fit.
func (s *Scheduler) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.BufferSize != s.cfg.BufferSize {
		s.obs = s.obs.resize(cfg.BufferSize)
	}
	s.cfg = cfg
}

// Decide runs the decision chain for one snapshot. Topic, mode and the
// stuck counter are updated before the chain, so they stay current
// even when the decision is a refusal. Decide never records a firing;
// the caller does that with Fire once the intervention went out.
func (s *Scheduler) Decide(snap *fusion.Snapshot, a fusion.Assessment, now time.Time) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	topicChanged := s.trackTopic(strings.TrimSpace(snap.Topic), now)
	modeChanged := s.trackMode(snap.Analysis.Mode)
	s.trackWork(snap.Analysis.Status())

	st := &s.state
	var onTopic time.Duration
	if !st.TopicSince.IsZero() {
		onTopic = now.Sub(st.TopicSince)
	}

	switch {
	case !st.LastIntervention.IsZero() && now.Sub(st.LastIntervention) < s.cfg.Cooldown:
		return decide(ReasonCooldown)
	case topicChanged:
		return decide(ReasonTopicTransition)
	case modeChanged:
		return decide(ReasonModeChange)
	case snap.HelpRequested:
		return decide(ReasonExplicitRequest)
	case a.ShouldIntervene:
		return decide(ReasonConfusion)
	case naturalPause(snap.Analysis) && onTopic >= s.cfg.NaturalPauseMin:
		return decide(ReasonNaturalPause)
	case (snap.Analysis.Stuck && onTopic > s.cfg.StuckAfter) || st.ConsecutiveStuck >= s.cfg.StuckCount:
		return decide(ReasonStuck)
	case onTopic > s.cfg.Fallback:
		return decide(ReasonFallback)
	default:
		return decide(ReasonNotYet)
	}
}

// Fire records an intervention at now.
func (s *Scheduler) Fire(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastIntervention = now
	s.state.Prompts++
	s.state.TopicSince = now
}

// Observe buffers an observation summary.
func (s *Scheduler) Observe(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs.push(summary)
}

// Recent returns up to n newest summaries, oldest first. A negative n
// uses the configured recent count.
func (s *Scheduler) Recent(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = s.cfg.RecentCount
	}
	return s.obs.last(n)
}

// Snapshot returns a copy of the bookkeeping.
func (s *Scheduler) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Recent = s.obs.last(-1)
	return st
}

// trackTopic reports a change from a previously seen topic. An empty
// topic leaves the bookkeeping alone.
func (s *Scheduler) trackTopic(topic string, now time.Time) bool {
	st := &s.state
	if topic == "" || topic == st.Topic {
		return false
	}
	changed := st.Topic != ""
	st.Topic = topic
	st.TopicSince = now
	return changed
}

// trackMode reports a change from a previously seen mode. ModeUnknown
// means no mode was detected.
func (s *Scheduler) trackMode(m fusion.Mode) bool {
	st := &s.state
	if m == fusion.ModeUnknown || m == st.Mode {
		return false
	}
	changed := st.Mode != fusion.ModeUnknown
	st.Mode = m
	return changed
}

func (s *Scheduler) trackWork(status fusion.WorkStatus) {
	switch status {
	case fusion.WorkIncorrect, fusion.WorkIncomplete:
		s.state.ConsecutiveStuck++
	case fusion.WorkCorrect:
		s.state.ConsecutiveStuck = 0
	}
}

var naturalPauseHints = []string{
	"natural pause",
	"natural break",
	"finished reading",
	"finished the section",
	"end of section",
	"end of the section",
	"moving on",
}

// naturalPause prefers the structured flag and falls back to scanning
// the analysis notes.
func naturalPause(a fusion.Analysis) bool {
	if a.NaturalPause != nil {
		return *a.NaturalPause
	}
	notes := strings.ToLower(a.Notes)
	for _, h := range naturalPauseHints {
		if strings.Contains(notes, h) {
			return true
		}
	}
	return false
}
