// Package bus is the in-process event stream that carries interventions,
// dialogue turns, session reports and mastery transitions to subscribers
// such as the websocket feed.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Topics published by the engine.
const (
	TopicInterventions      = "interventions"
	TopicDialogueMessages   = "dialogue_messages"
	TopicSessionReports     = "session_reports"
	TopicMasteryTransitions = "mastery_transitions"
	TopicDecisions          = "decisions"
)

// Topics lists every topic, for subscribers that want all of them.
var Topics = []string{
	TopicInterventions,
	TopicDialogueMessages,
	TopicSessionReports,
	TopicMasteryTransitions,
	TopicDecisions,
}

// metadataTopic carries the topic on each message so merged streams can
// tell events apart.
const metadataTopic = "topic"

// Bus publishes JSON events on a watermill go-channel pub/sub.
type Bus struct {
	pubsub *gochannel.GoChannel
	log    *zap.Logger
}

// New creates a bus whose subscriber channels hold buffer messages.
func New(buffer int64, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buffer}, newLogger(log.Named("watermill"))),
		log:    log,
	}
}

// Publish encodes v as JSON and publishes it on topic.
func (b *Bus) Publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(metadataTopic, topic)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe streams topic until ctx is done. Messages must be acked.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Event is a decoded message from any topic.
type Event struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// SubscribeAll merges every topic into one stream of events, acking each
// message as it is forwarded. The channel closes when ctx is done.
func (b *Bus) SubscribeAll(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	done := make(chan struct{})
	var chans []<-chan *message.Message
	for _, t := range Topics {
		ch, err := b.pubsub.Subscribe(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", t, err)
		}
		chans = append(chans, ch)
	}
	for _, ch := range chans {
		go func(ch <-chan *message.Message) {
			for msg := range ch {
				ev := Event{ID: msg.UUID, Topic: msg.Metadata.Get(metadataTopic), Payload: json.RawMessage(msg.Payload)}
				select {
				case out <- ev:
					msg.Ack()
				case <-ctx.Done():
					msg.Nack()
				}
			}
			done <- struct{}{}
		}(ch)
	}
	go func() {
		for range chans {
			<-done
		}
		close(out)
	}()
	return out, nil
}

// Close stops the pub/sub and closes subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
