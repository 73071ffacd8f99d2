// Package engine owns one instance of each decision component and runs
// them from a single control loop: snapshots, dialogue replies and
// reconfiguration are processed strictly in arrival order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/bus"
	"github.com/abhisek/attune/internal/dialogue"
	"github.com/abhisek/attune/internal/dispatch"
	"github.com/abhisek/attune/internal/fusion"
	"github.com/abhisek/attune/internal/mastery"
	"github.com/abhisek/attune/internal/scheduler"
	"github.com/abhisek/attune/internal/store"
)

// ErrStopped is returned for work submitted after the loop exited.
var ErrStopped = errors.New("engine stopped")

// Journal records what the engine did. The store's event repo
// satisfies it.
type Journal interface {
	AppendObservation(ctx context.Context, data store.ObservationEventData) error
	AppendMasteryTransition(ctx context.Context, data store.MasteryTransitionEventData) error
	AppendIntervention(ctx context.Context, data store.InterventionEventData) error
	AppendSessionReport(ctx context.Context, data store.SessionReportEventData) error
}

// Publisher fans events out to live subscribers.
type Publisher interface {
	Publish(topic string, v any) error
}

// Config holds the thresholds the engine passes to its components.
type Config struct {
	Fusion    fusion.Config
	Scheduler scheduler.Config
	Limits    dialogue.Limits
}

// Validate checks every component's thresholds.
func (c Config) Validate() error {
	return errors.Join(c.Fusion.Validate(), c.Scheduler.Validate(), c.Limits.Validate())
}

// Deps are the collaborators the engine drives.
type Deps struct {
	Tracker    *mastery.Tracker
	Tutor      *dialogue.Tutor
	Dispatcher *dispatch.Dispatcher

	// Journal and Publisher may be nil.
	Journal   Journal
	Publisher Publisher
	Log       *zap.Logger

	// Clock times scheduling decisions. Defaults to time.Now.
	Clock func() time.Time
}

// Engine is the single writer over the scorer, scheduler, tracker and
// tutor. Readers may use the components' own thread-safe accessors.
type Engine struct {
	scorer     *fusion.Scorer
	sched      *scheduler.Scheduler
	tracker    *mastery.Tracker
	tutor      *dialogue.Tutor
	dispatcher *dispatch.Dispatcher
	journal    Journal
	pub        Publisher
	log        *zap.Logger
	now        func() time.Time

	jobs    chan func(context.Context)
	stopped chan struct{}
}

// New creates an engine. Run must be called to start processing.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if deps.Tracker == nil || deps.Tutor == nil || deps.Dispatcher == nil {
		return nil, errors.New("engine: tracker, tutor and dispatcher are required")
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	deps.Tutor.SetLimits(cfg.Limits)
	e := &Engine{
		scorer:     fusion.NewScorer(cfg.Fusion),
		sched:      scheduler.New(cfg.Scheduler),
		tracker:    deps.Tracker,
		tutor:      deps.Tutor,
		dispatcher: deps.Dispatcher,
		journal:    deps.Journal,
		pub:        deps.Publisher,
		log:        log.Named("engine"),
		now:        clock,
		jobs:       make(chan func(context.Context)),
		stopped:    make(chan struct{}),
	}
	deps.Tutor.OnExpire(e.expired)
	return e, nil
}

// Run processes submitted work until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)
	e.log.Info("engine loop started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine loop stopped")
			return nil
		case job := <-e.jobs:
			job(ctx)
		}
	}
}

// do runs fn on the loop and waits for it to finish.
func do[T any](ctx context.Context, e *Engine, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	job := func(context.Context) {
		v, err := fn(ctx)
		ch <- result{v, err}
	}

	var zero T
	select {
	case e.jobs <- job:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-e.stopped:
		return zero, ErrStopped
	}
	select {
	case r := <-ch:
		return r.v, r.err
	case <-e.stopped:
		return zero, ErrStopped
	}
}

// Submit processes one snapshot and returns what was decided.
func (e *Engine) Submit(ctx context.Context, snap fusion.Snapshot) (*Outcome, error) {
	return do(ctx, e, func(ctx context.Context) (*Outcome, error) {
		return e.process(ctx, &snap), nil
	})
}

// Reply forwards a learner reply to their dialogue session.
func (e *Engine) Reply(ctx context.Context, sessionID, message string) (*dialogue.ReplyResult, error) {
	return do(ctx, e, func(ctx context.Context) (*dialogue.ReplyResult, error) {
		res, err := e.tutor.Reply(ctx, sessionID, message)
		if err != nil {
			return nil, err
		}
		e.publish(bus.TopicDialogueMessages, res.Message)
		if res.Report != nil {
			e.applyReport(ctx, *res.Report)
		}
		return res, nil
	})
}

// Close ends a dialogue session at the learner's request.
func (e *Engine) Close(ctx context.Context, sessionID string) (*dialogue.Report, error) {
	return do(ctx, e, func(ctx context.Context) (*dialogue.Report, error) {
		report, err := e.tutor.Close(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		e.applyReport(ctx, *report)
		return report, nil
	})
}

// expired hands the report of an evicted session to the loop. It is
// called from the session table's janitor and must not block it.
func (e *Engine) expired(r dialogue.Report) {
	job := func(ctx context.Context) { e.applyReport(ctx, r) }
	go func() {
		select {
		case e.jobs <- job:
		case <-e.stopped:
		}
	}()
}

// Reconfigure swaps thresholds on the running engine. Mastery
// parameters are fixed at construction.
func (e *Engine) Reconfigure(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("reconfigure: %w", err)
	}
	_, err := do(ctx, e, func(context.Context) (struct{}, error) {
		e.scorer = fusion.NewScorer(cfg.Fusion)
		e.sched.SetConfig(cfg.Scheduler)
		e.tutor.SetLimits(cfg.Limits)
		e.log.Info("engine reconfigured")
		return struct{}{}, nil
	})
	return err
}

// Tracker, Scheduler and Tutor expose the components for readers.
func (e *Engine) Tracker() *mastery.Tracker        { return e.tracker }
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }
func (e *Engine) Tutor() *dialogue.Tutor          { return e.tutor }

func (e *Engine) publish(topic string, v any) {
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(topic, v); err != nil {
		e.log.Warn("publish event", zap.String("topic", topic), zap.Error(err))
	}
}

func (e *Engine) journalErr(what string, err error) {
	if err != nil {
		e.log.Warn("journal "+what, zap.Error(err))
	}
}
