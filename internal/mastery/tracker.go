package mastery

import (
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Record is the per-concept BKT state.
type Record struct {
	ConceptID    string        `json:"concept_id"`
	PKnow        float64       `json:"p_know"`
	PLearn       float64       `json:"p_learn"`
	PGuess       float64       `json:"p_guess"`
	PSlip        float64       `json:"p_slip"`
	State        MasteryState  `json:"state"`
	Observations []Observation `json:"observations"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Update is the result of applying one observation.
type Update struct {
	Before float64
	PKnow  float64

	// Transition is non-nil when the concept changed lifecycle state.
	Transition *StateTransition
}

// Tracker keeps BKT state for every concept referenced by one learner.
// Records idle for longer than Params.IdleTTL are evicted.
type Tracker struct {
	mu     sync.Mutex
	params Params
	items  *cache.Cache
	now    func() time.Time
}

// NewTracker creates a tracker with the given defaults.
func NewTracker(p Params) *Tracker {
	ttl := p.IdleTTL
	var c *cache.Cache
	if ttl <= 0 {
		c = cache.New(cache.NoExpiration, 0)
	} else {
		c = cache.New(ttl, ttl/2)
	}
	return &Tracker{params: p, items: c, now: time.Now}
}

// Params returns the tracker's defaults.
func (t *Tracker) Params() Params {
	return t.params
}

// Update applies one observation to conceptID, creating the record with
// the default parameters on first reference. Confidence is clamped to
// [0,1]; zero confidence leaves only the learn transition.
func (t *Tracker) Update(conceptID string, correct bool, confidence float64, source string) Update {
	t.mu.Lock()
	defer t.mu.Unlock()

	if source == "" {
		source = SourceUnknown
	}
	confidence = clampConfidence(confidence)
	rec := t.load(conceptID)
	now := t.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	before := rec.PKnow
	after := step(before, correct, confidence, rec.PLearn, rec.PGuess, rec.PSlip)

	rec.Observations = append(rec.Observations, Observation{
		ConceptID:  conceptID,
		Correct:    correct,
		Confidence: confidence,
		Source:     source,
		Timestamp:  now,
		Before:     before,
		After:      after,
	})
	rec.PLearn = adaptLearn(rec.PLearn, rec.Observations)
	rec.PKnow = after
	rec.UpdatedAt = now

	prev := rec.State
	rec.State = stateFor(prev, after, t.params.MasteryThreshold)

	var tr *StateTransition
	if rec.State != prev {
		tr = &StateTransition{
			ConceptID: conceptID,
			From:      prev,
			To:        rec.State,
			Mastery:   after,
			Source:    source,
			Trigger:   triggerFor(prev, rec.State),
		}
	}
	t.store(rec)
	return Update{Before: before, PKnow: after, Transition: tr}
}

// Apply feeds a batch of observations through Update in order and
// returns the transitions they caused.
func (t *Tracker) Apply(obs []Observation) []StateTransition {
	var out []StateTransition
	for _, o := range obs {
		if o.ConceptID == "" {
			continue
		}
		if up := t.Update(o.ConceptID, o.Correct, o.Confidence, o.Source); up.Transition != nil {
			out = append(out, *up.Transition)
		}
	}
	return out
}

// Mastery returns the current P(know) for conceptID, or 0 when the
// concept has never been observed.
func (t *Tracker) Mastery(conceptID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.get(conceptID)
	if !ok {
		return 0
	}
	return rec.PKnow
}

// IsMastered reports whether conceptID is at or above threshold. A
// non-positive threshold means the configured mastery threshold.
func (t *Tracker) IsMastered(conceptID string, threshold float64) bool {
	if threshold <= 0 {
		threshold = t.params.MasteryThreshold
	}
	return t.Mastery(conceptID) >= threshold
}

// Quality grades the evidence behind conceptID's estimate.
func (t *Tracker) Quality(conceptID string) Quality {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.get(conceptID)
	if !ok {
		return qualityOf(nil)
	}
	return qualityOf(rec.Observations)
}

// Record returns a copy of conceptID's state.
func (t *Tracker) Record(conceptID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.get(conceptID)
	if !ok {
		return Record{}, false
	}
	out := *rec
	out.Observations = slices.Clone(rec.Observations)
	return out, true
}

// Concepts returns the current mastery of every live concept.
func (t *Tracker) Concepts() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	items := t.items.Items()
	out := make(map[string]float64, len(items))
	for k, it := range items {
		out[k] = it.Object.(*Record).PKnow
	}
	return out
}

// load returns the record for conceptID, creating it when absent.
func (t *Tracker) load(conceptID string) *Record {
	if rec, ok := t.get(conceptID); ok {
		return rec
	}
	return &Record{
		ConceptID: conceptID,
		PKnow:     t.params.Prior,
		PLearn:    t.params.Learn,
		PGuess:    t.params.Guess,
		PSlip:     t.params.Slip,
		State:     StateNew,
	}
}

// get fetches a record and refreshes its expiry.
func (t *Tracker) get(conceptID string) (*Record, bool) {
	v, ok := t.items.Get(conceptID)
	if !ok {
		return nil, false
	}
	rec := v.(*Record)
	t.store(rec)
	return rec, true
}

func (t *Tracker) store(rec *Record) {
	t.items.Set(rec.ConceptID, rec, cache.DefaultExpiration)
}
