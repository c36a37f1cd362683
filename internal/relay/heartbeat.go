package relay

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/queue"
)

// Emitter queues a keepalive at start then once per period, on the queue shared with real events.
type Emitter struct {
	clock    clockwork.Clock
	period   time.Duration
	outgoing *queue.Queue[entity.Event]

	logger *logr.Logger
}

func NewEmitter(clock clockwork.Clock, period time.Duration, outgoing *queue.Queue[entity.Event]) Emitter {
	return Emitter{
		clock:    clock,
		period:   period,
		outgoing: outgoing,
	}
}

func (e Emitter) WithLogger(logger logr.Logger) Emitter {
	e.logger = &logger

	return e
}

// Run emits until ctx is done.
func (e Emitter) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.period)
	defer ticker.Stop()

	e.emit()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			e.emit()
		}
	}
}

func (e Emitter) emit() {
	if e.logger != nil {
		e.logger.V(3).Info("Queuing keepalive")
	}

	e.outgoing.Push(entity.NewKeepalive())
}
