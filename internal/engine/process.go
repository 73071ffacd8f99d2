package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/bus"
	"github.com/abhisek/attune/internal/dialogue"
	"github.com/abhisek/attune/internal/dispatch"
	"github.com/abhisek/attune/internal/fusion"
	"github.com/abhisek/attune/internal/mastery"
	"github.com/abhisek/attune/internal/scheduler"
	"github.com/abhisek/attune/internal/store"
)

// DefaultUserID is used for snapshots that carry no user.
const DefaultUserID = "default"

// Outcome is the result of processing one snapshot.
type Outcome struct {
	UserID       string                    `json:"user_id"`
	Topic        string                    `json:"topic,omitempty"`
	Decision     scheduler.Decision        `json:"decision"`
	Assessment   *fusion.Assessment        `json:"assessment,omitempty"`
	Mastery      float64                   `json:"mastery"`
	Observations int                       `json:"observations"`
	Transitions  []mastery.StateTransition `json:"transitions,omitempty"`
	Target       scheduler.Target          `json:"target,omitempty"`
	Intervention *dispatch.Intervention    `json:"intervention,omitempty"`
	Dialogue     *dialogue.Message         `json:"dialogue,omitempty"`
}

func (e *Engine) process(ctx context.Context, snap *fusion.Snapshot) *Outcome {
	now := e.now()
	observedAt := snap.Timestamp
	if observedAt.IsZero() {
		observedAt = now
	}
	userID := snap.UserID
	if userID == "" {
		userID = DefaultUserID
	}
	out := &Outcome{UserID: userID}

	topic := resolveTopic(snap.Topic, snap.ScreenContent)
	if topic == "" {
		out.Decision = scheduler.Decision{Reason: scheduler.ReasonSkipped}
		e.log.Debug("snapshot skipped, no topic", zap.String("user_id", userID))
		return out
	}
	out.Topic = topic

	a := e.scorer.Score(snap)
	out.Assessment = &a

	for _, o := range SnapshotObservations(topic, snap, observedAt) {
		if tr := e.observe(ctx, userID, o); tr != nil {
			out.Transitions = append(out.Transitions, *tr)
		}
		out.Observations++
	}

	if s, ok := e.tutor.Active(userID); ok && s.ShouldClose() {
		if report, err := e.tutor.Close(ctx, s.ID()); err == nil {
			e.applyReport(ctx, *report)
		}
	}
	out.Mastery = e.tracker.Mastery(topic)
	if s, ok := e.tutor.Active(userID); ok {
		out.Decision = scheduler.Decision{Reason: scheduler.ReasonInDialogue}
		e.log.Debug("learner in dialogue", zap.String("user_id", userID), zap.String("session_id", s.ID()))
		e.publish(bus.TopicDecisions, out)
		return out
	}

	scoped := *snap
	scoped.Topic = topic
	out.Decision = e.sched.Decide(&scoped, a, now)
	if !out.Decision.Fire {
		e.log.Debug("no intervention",
			zap.String("topic", topic),
			zap.String("reason", string(out.Decision.Reason)),
			zap.Float64("score", a.Score))
		e.publish(bus.TopicDecisions, out)
		return out
	}

	e.intervene(ctx, out, &scoped, a, now)
	e.sched.Fire(now)
	e.publish(bus.TopicDecisions, out)
	return out
}

// intervene routes a firing decision and records what was delivered.
func (e *Engine) intervene(ctx context.Context, out *Outcome, snap *fusion.Snapshot, a fusion.Assessment, now time.Time) {
	target := scheduler.Route(snap.Analysis.Mode)
	hypothesis := BuildHypothesis(snap, a)
	req := dispatch.RoutedRequest{
		ID:                 uuid.NewString(),
		UserID:             out.UserID,
		SessionID:          snap.SessionID,
		Target:             target,
		Context:            dispatch.NewContext(snap, out.Topic, hypothesis, a),
		Mastery:            out.Mastery,
		MasteryQuality:     e.tracker.Quality(out.Topic).Tier,
		TriggerReason:      out.Decision.Reason,
		RecentObservations: e.sched.Recent(-1),
		CreatedAt:          now,
	}
	out.Target = target

	e.log.Info("intervening",
		zap.String("user_id", out.UserID),
		zap.String("topic", out.Topic),
		zap.String("reason", string(req.TriggerReason)),
		zap.String("target", string(target)),
		zap.String("type", string(a.Type)),
		zap.Float64("score", a.Score),
		zap.Float64("mastery", out.Mastery))

	var iv dispatch.Intervention
	if opensDialogue(target, a.Type, req.TriggerReason) {
		msg, err := e.tutor.Start(ctx, dialogue.StartRequest{
			UserID:     out.UserID,
			Concept:    out.Topic,
			Hypothesis: hypothesis,
			Trigger: dialogue.Trigger{
				ScreenContent: req.Context.ScreenContent,
				ContentType:   string(snap.ContentType),
				Reason:        string(req.TriggerReason),
			},
		})
		if err == nil {
			out.Dialogue = msg
			iv = dispatch.Intervention{
				ID:                uuid.NewString(),
				RequestID:         req.ID,
				UserID:            out.UserID,
				Target:            target,
				Tool:              dispatch.ToolDialogue,
				Topic:             out.Topic,
				Reason:            req.TriggerReason,
				Mastery:           out.Mastery,
				Content:           msg.Content,
				Fallback:          msg.Fallback,
				DialogueSessionID: msg.SessionID,
				CreatedAt:         now,
			}
			e.publish(bus.TopicDialogueMessages, msg)
		} else {
			e.log.Warn("start dialogue failed, dispatching one-shot", zap.Error(err))
		}
	}
	if iv.ID == "" {
		iv = e.dispatcher.Dispatch(ctx, req)
	}
	out.Intervention = &iv

	e.publish(bus.TopicInterventions, iv)
	if e.journal != nil {
		e.journalErr("intervention", e.journal.AppendIntervention(ctx, store.InterventionEventData{
			UserID:            out.UserID,
			Topic:             out.Topic,
			Target:            string(target),
			Reason:            string(req.TriggerReason),
			ConfusionType:     string(a.Type),
			Score:             a.Score,
			Mastery:           out.Mastery,
			DialogueSessionID: iv.DialogueSessionID,
			Content:           iv.Content,
			Fallback:          iv.Fallback,
		}))
	}
}

// opensDialogue reports whether an intervention becomes a multi-turn
// tutoring session rather than a one-shot prompt.
func opensDialogue(target scheduler.Target, kind fusion.ConfusionType, reason scheduler.Reason) bool {
	return target == scheduler.TargetConceptual &&
		kind == fusion.TypeConceptualWhy &&
		(reason == scheduler.ReasonExplicitRequest || reason == scheduler.ReasonConfusion)
}

// observe applies one observation and records it. It returns the
// mastery transition the observation caused, if any.
func (e *Engine) observe(ctx context.Context, userID string, o mastery.Observation) *mastery.StateTransition {
	up := e.tracker.Update(o.ConceptID, o.Correct, o.Confidence, o.Source)
	e.sched.Observe(summarize(o, up.PKnow))

	if e.journal != nil {
		e.journalErr("observation", e.journal.AppendObservation(ctx, store.ObservationEventData{
			UserID:      userID,
			ConceptID:   o.ConceptID,
			Correct:     o.Correct,
			Confidence:  o.Confidence,
			Source:      o.Source,
			PKnowBefore: up.Before,
			PKnowAfter:  up.PKnow,
		}))
	}

	tr := up.Transition
	if tr == nil {
		return nil
	}
	e.log.Info("mastery transition",
		zap.String("concept", tr.ConceptID),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.Float64("mastery", tr.Mastery))
	e.publish(bus.TopicMasteryTransitions, tr)
	if e.journal != nil {
		e.journalErr("mastery transition", e.journal.AppendMasteryTransition(ctx, store.MasteryTransitionEventData{
			UserID:    userID,
			ConceptID: tr.ConceptID,
			From:      string(tr.From),
			To:        string(tr.To),
			Mastery:   tr.Mastery,
			Source:    tr.Source,
			Trigger:   tr.Trigger,
		}))
	}
	return tr
}

// applyReport feeds a closed session's evidence into the tracker.
func (e *Engine) applyReport(ctx context.Context, r dialogue.Report) {
	for _, o := range r.Observations {
		o.ConceptID = mastery.NormalizeConceptID(o.ConceptID)
		if strings.TrimSpace(o.ConceptID) == "" {
			continue
		}
		e.observe(ctx, r.UserID, o)
	}
	e.log.Info("dialogue report applied",
		zap.String("session_id", r.SessionID),
		zap.String("concept", r.Concept),
		zap.String("reason", string(r.CloseReason)),
		zap.Float64("final_comprehension", r.FinalComprehension),
		zap.Int("observations", len(r.Observations)))
	e.publish(bus.TopicSessionReports, r)
	if e.journal != nil {
		e.journalErr("session report", e.journal.AppendSessionReport(ctx, store.SessionReportEventData{
			SessionID:          r.SessionID,
			UserID:             r.UserID,
			Concept:            r.Concept,
			TurnCount:          r.TurnCount,
			FinalComprehension: r.FinalComprehension,
			CloseReason:        string(r.CloseReason),
			DurationSeconds:    r.DurationSeconds,
			ObservationCount:   len(r.Observations),
		}))
	}
}
