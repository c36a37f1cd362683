package relay

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/gerritevents/gerrit-events/internal/common"
	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/queue"
	"github.com/gerritevents/gerrit-events/pkg/wire"
)

const CategoryMalformedEvent = "malformed_event"

// Main decodes one upstream record and queues it for publishing when its kind is accepted.
type Main struct {
	decoder  Decoder
	outgoing *queue.Queue[entity.Event]

	logger *logr.Logger
}

func NewMain(decoder Decoder, outgoing *queue.Queue[entity.Event]) Main {
	return Main{
		decoder:  decoder,
		outgoing: outgoing,
	}
}

func (m Main) WithLogger(logger logr.Logger) Main {
	m.logger = &logger

	return m
}

func (m Main) Process(ctx context.Context, record []byte) error {
	event, accepted, err := m.decoder.Decode(record)
	if err != nil {
		return common.NewErrProcessingError(err, CategoryMalformedEvent, nil, "failed to decode record").WithRecord(record)
	}

	if !accepted {
		return nil
	}

	m.logInfo(2, "Queuing event", "kind", event.Kind, "project", event.Value())

	m.outgoing.Push(event)

	return nil
}

func (m Main) logInfo(level int, msg string, keysAndValues ...any) {
	if m.logger == nil {
		return
	}

	m.logger.V(level).Info(msg, keysAndValues...)
}

// Publishing sends one outgoing event as a wire message.
type Publishing struct {
	publisher Publisher
	topic     string
}

func NewPublishing(publisher Publisher, topic string) Publishing {
	if topic == "" {
		topic = wire.DefaultTopic
	}

	return Publishing{
		publisher: publisher,
		topic:     topic,
	}
}

func (p Publishing) Process(ctx context.Context, event entity.Event) error {
	err := p.publisher.Publish(ctx, wire.NewMessage(p.topic, event.Kind, event.Value()))
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Kind, err)
	}

	return nil
}
