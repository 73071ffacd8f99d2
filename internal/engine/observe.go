package engine

import (
	"fmt"
	"time"

	"github.com/abhisek/attune/internal/fusion"
	"github.com/abhisek/attune/internal/mastery"
)

// Confidence given to each kind of derived evidence.
const (
	behavioralConfidence = 0.35
	conceptConfidence    = 0.7
	workConfidence       = 0.8
)

// BehavioralObservation reads a mastery observation from typing
// behaviour. Only unambiguous patterns count: fluent work is correct,
// clear struggle is incorrect, anything in between yields nothing.
// deletion is the 0-1 share of keystrokes that were deletions.
func BehavioralObservation(topic string, typing, deletion, pause float64, at time.Time) (mastery.Observation, bool) {
	o := mastery.Observation{
		ConceptID:  topic,
		Confidence: behavioralConfidence,
		Source:     mastery.SourceBehavioral,
		Timestamp:  at,
	}
	switch {
	case typing > 0.9 && deletion < 0.2 && pause < 5:
		o.Correct = true
		return o, true
	case typing < 0.3 && deletion > 0.5 && pause > 20:
		return o, true
	default:
		return mastery.Observation{}, false
	}
}

// AnalysisObservations turns the content analysis into observations:
// one per concept understood or confused about, and one for the topic
// when the work was judged correct or incorrect.
func AnalysisObservations(topic string, a fusion.Analysis, at time.Time) []mastery.Observation {
	var out []mastery.Observation
	add := func(id string, correct bool, conf float64) {
		if id == "" {
			return
		}
		out = append(out, mastery.Observation{
			ConceptID:  id,
			Correct:    correct,
			Confidence: conf,
			Source:     mastery.SourceContentAnalysis,
			Timestamp:  at,
		})
	}
	for _, c := range a.Understands {
		add(mastery.NormalizeConceptID(c), true, conceptConfidence)
	}
	for _, c := range a.ConfusedAbout {
		add(mastery.NormalizeConceptID(c), false, conceptConfidence)
	}
	switch a.Status() {
	case fusion.WorkCorrect:
		add(topic, true, workConfidence)
	case fusion.WorkIncorrect:
		add(topic, false, workConfidence)
	}
	return out
}

// SnapshotObservations collects all evidence carried by one snapshot.
func SnapshotObservations(topic string, snap *fusion.Snapshot, at time.Time) []mastery.Observation {
	var out []mastery.Observation
	if o, ok := BehavioralObservation(topic, snap.TypingSpeedRatio, snap.DeletionRate, snap.PauseSeconds, at); ok {
		out = append(out, o)
	}
	return append(out, AnalysisObservations(topic, snap.Analysis, at)...)
}

// summarize renders an applied observation for the scheduler buffer.
func summarize(o mastery.Observation, after float64) string {
	verdict := "incorrect"
	if o.Correct {
		verdict = "correct"
	}
	return fmt.Sprintf("%s: %s via %s (conf %.2f), mastery %.0f%%",
		o.ConceptID, verdict, o.Source, o.Confidence, after*100)
}
