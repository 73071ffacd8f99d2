package store

import (
	"context"
	"fmt"
	"time"
)

func (r *eventRepo) AppendObservation(ctx context.Context, data ObservationEventData) error {
	err := r.insert(ctx, "observation_events",
		[]string{"user_id", "concept_id", "correct", "confidence", "source", "p_know_before", "p_know_after"},
		data.UserID, data.ConceptID, data.Correct, data.Confidence, data.Source, data.PKnowBefore, data.PKnowAfter)
	if err != nil {
		return fmt.Errorf("save observation event: %w", err)
	}
	return nil
}

func (r *eventRepo) AppendMasteryTransition(ctx context.Context, data MasteryTransitionEventData) error {
	err := r.insert(ctx, "mastery_transition_events",
		[]string{"user_id", "concept_id", "from_state", "to_state", "mastery", "source", "cause"},
		data.UserID, data.ConceptID, data.From, data.To, data.Mastery, data.Source, data.Trigger)
	if err != nil {
		return fmt.Errorf("save mastery transition event: %w", err)
	}
	return nil
}

func (r *eventRepo) AppendIntervention(ctx context.Context, data InterventionEventData) error {
	err := r.insert(ctx, "intervention_events",
		[]string{"user_id", "topic", "target", "reason", "confusion_type", "score", "mastery",
			"dialogue_session_id", "content", "fallback"},
		data.UserID, data.Topic, data.Target, data.Reason, data.ConfusionType, data.Score, data.Mastery,
		data.DialogueSessionID, data.Content, data.Fallback)
	if err != nil {
		return fmt.Errorf("save intervention event: %w", err)
	}
	return nil
}

func (r *eventRepo) AppendSessionReport(ctx context.Context, data SessionReportEventData) error {
	err := r.insert(ctx, "session_report_events",
		[]string{"session_id", "user_id", "concept", "turn_count", "final_comprehension", "close_reason",
			"duration_seconds", "observation_count"},
		data.SessionID, data.UserID, data.Concept, data.TurnCount, data.FinalComprehension, data.CloseReason,
		data.DurationSeconds, data.ObservationCount)
	if err != nil {
		return fmt.Errorf("save session report event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryInterventions(ctx context.Context, opts QueryOpts) ([]InterventionEvent, error) {
	clause, args := where(opts, true)
	rows, err := r.db.QueryContext(ctx, `SELECT id, sequence, timestamp, user_id, topic, target, reason,
		confusion_type, score, mastery, dialogue_session_id, content, fallback
		FROM intervention_events`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query interventions: %w", err)
	}
	defer rows.Close()

	var out []InterventionEvent
	for rows.Next() {
		var e InterventionEvent
		var ts int64
		if err := rows.Scan(&e.ID, &e.Sequence, &ts, &e.UserID, &e.Topic, &e.Target, &e.Reason,
			&e.ConfusionType, &e.Score, &e.Mastery, &e.DialogueSessionID, &e.Content, &e.Fallback); err != nil {
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		e.Timestamp = time.Unix(0, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *eventRepo) QuerySessionReports(ctx context.Context, opts QueryOpts) ([]SessionReportEvent, error) {
	clause, args := where(opts, true)
	rows, err := r.db.QueryContext(ctx, `SELECT id, sequence, timestamp, session_id, user_id, concept,
		turn_count, final_comprehension, close_reason, duration_seconds, observation_count
		FROM session_report_events`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query session reports: %w", err)
	}
	defer rows.Close()

	var out []SessionReportEvent
	for rows.Next() {
		var e SessionReportEvent
		var ts int64
		if err := rows.Scan(&e.ID, &e.Sequence, &ts, &e.SessionID, &e.UserID, &e.Concept, &e.TurnCount,
			&e.FinalComprehension, &e.CloseReason, &e.DurationSeconds, &e.ObservationCount); err != nil {
			return nil, fmt.Errorf("scan session report: %w", err)
		}
		e.Timestamp = time.Unix(0, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}
