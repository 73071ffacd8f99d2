package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/bus"
	"github.com/abhisek/attune/internal/config"
	"github.com/abhisek/attune/internal/dialogue"
	"github.com/abhisek/attune/internal/dispatch"
	"github.com/abhisek/attune/internal/engine"
	"github.com/abhisek/attune/internal/llm"
	"github.com/abhisek/attune/internal/mastery"
	"github.com/abhisek/attune/internal/store"
)

// instance is the wired engine plus the resources it owns.
type instance struct {
	eng   *engine.Engine
	bus   *bus.Bus
	store *store.Store
}

// newInstance wires the engine from cfg. s may be nil, in which case
// nothing is journaled. clock may be nil to use the wall clock.
func newInstance(ctx context.Context, cfg config.Config, s *store.Store, clock func() time.Time, log *zap.Logger) (*instance, error) {
	var (
		llmJournal llm.Journal
		journal    engine.Journal
	)
	if s != nil {
		repo := s.EventRepo()
		llmJournal, journal = repo, repo
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, llmJournal, log)
	if err != nil {
		return nil, fmt.Errorf("create llm provider: %w", err)
	}

	var tutorOpts []dialogue.TutorOption
	if clock != nil {
		tutorOpts = append(tutorOpts, dialogue.WithClock(clock))
	}

	b := bus.New(int64(cfg.Bus.Buffer), log)
	eng, err := engine.New(cfg.Engine(), engine.Deps{
		Tracker:    mastery.NewTracker(cfg.Mastery),
		Tutor:      dialogue.NewTutor(provider, cfg.Dialogue, log, tutorOpts...),
		Dispatcher: dispatch.NewDefaultDispatcher(provider, cfg.Handlers, log),
		Journal:    journal,
		Publisher:  b,
		Log:        log,
		Clock:      clock,
	})
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return &instance{eng: eng, bus: b, store: s}, nil
}

func (r *instance) Close() error {
	err := r.bus.Close()
	if r.store != nil {
		if serr := r.store.Close(); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}
