package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/attune/internal/llm"
	"github.com/abhisek/attune/internal/scheduler"
)

// Dispatcher sends routed requests to the handler registered for their
// target. It always returns an intervention: a missing handler routes
// to the conceptual one and a failing handler yields a canned message.
type Dispatcher struct {
	handlers map[scheduler.Target]Handler
	log      *zap.Logger
	now      func() time.Time
}

// NewDispatcher registers handlers by target; a later handler for the
// same target replaces an earlier one.
func NewDispatcher(log *zap.Logger, handlers ...Handler) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[scheduler.Target]Handler, len(handlers)),
		log:      named(log, "dispatch"),
		now:      time.Now,
	}
	for _, h := range handlers {
		d.handlers[h.Target()] = h
	}
	return d
}

// Dispatch delivers req and returns the produced intervention.
func (d *Dispatcher) Dispatch(ctx context.Context, req RoutedRequest) Intervention {
	h, ok := d.handlers[req.Target]
	if !ok {
		d.log.Warn("no handler for target, routing to conceptual", zap.String("target", string(req.Target)))
		h, ok = d.handlers[scheduler.TargetConceptual]
	}
	if !ok {
		return d.fallback(req)
	}

	iv, err := h.Handle(ctx, req)
	if err != nil {
		d.log.Warn("handler failed, using fallback",
			zap.String("target", string(req.Target)),
			zap.String("request_id", req.ID),
			zap.Error(err))
		return d.fallback(req)
	}
	return iv
}

func (d *Dispatcher) fallback(req RoutedRequest) Intervention {
	return Intervention{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		UserID:    req.UserID,
		Target:    req.Target,
		Tool:      ToolQuestion,
		Topic:     req.Context.Topic,
		Reason:    req.TriggerReason,
		Mastery:   req.Mastery,
		Content:   conceptualFallback,
		Fallback:  true,
		CreatedAt: d.now(),
	}
}

// NewDefaultDispatcher wires the three built-in handlers to provider.
func NewDefaultDispatcher(provider llm.Provider, cfg HandlerConfig, log *zap.Logger) *Dispatcher {
	return NewDispatcher(log,
		NewConceptualHandler(provider, cfg, log),
		NewAppliedHandler(provider, cfg, log),
		NewExtensionHandler(provider, cfg, log),
	)
}
