package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/queue"
	"github.com/gerritevents/gerrit-events/pkg/wire"
)

// Router dispatches the received messages: keepalives to the heartbeat monitor,
// trigger events for a known project to the fetch requests.
type Router struct {
	subscriber   Subscriber
	triggers     map[string]struct{}
	repositories map[string]entity.Repository

	beats    *queue.Queue[string]
	requests *queue.Queue[entity.Repository]

	logger *logr.Logger
}

func NewRouter(subscriber Subscriber, triggerKinds []string, repositories map[string]entity.Repository, queues Queues) Router {
	triggers := make(map[string]struct{}, len(triggerKinds))
	for _, kind := range triggerKinds {
		triggers[kind] = struct{}{}
	}

	return Router{
		subscriber:   subscriber,
		triggers:     triggers,
		repositories: repositories,
		beats:        queues.Beats,
		requests:     queues.Requests,
	}
}

func (r Router) WithLogger(logger logr.Logger) Router {
	r.logger = &logger

	return r
}

// Run receives until ctx is done. The subscriber is closed once ctx is done.
func (r Router) Run(ctx context.Context) error {
	closed := make(chan struct{})

	stop := context.AfterFunc(ctx, func() {
		defer close(closed)

		err := r.subscriber.Close()
		if err != nil {
			r.logError(err, "Failed to close subscriber")
		}
	})

	defer func() {
		if !stop() {
			<-closed
		}
	}()

	for {
		msg, err := r.subscriber.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if errors.Is(err, wire.ErrInvalidMessage) {
				r.logError(err, "Dropping message")

				continue
			}

			return fmt.Errorf("failed to receive: %w", err)
		}

		r.Dispatch(msg)
	}
}

func (r Router) Dispatch(msg wire.Message) {
	if msg.Kind == entity.KindKeepalive {
		r.logInfo(3, "Received keepalive", "value", msg.Value)

		r.beats.Push(msg.Value)

		return
	}

	_, trigger := r.triggers[msg.Kind]
	if !trigger {
		r.logInfo(1, "Ignoring event", "kind", msg.Kind, "value", msg.Value)

		return
	}

	repository, known := r.repositories[msg.Value]
	if !known {
		r.logInfo(0, "Ignoring event for unknown project", "kind", msg.Kind, "project", msg.Value)

		return
	}

	r.logInfo(1, "Requesting fetch", "kind", msg.Kind, "project", msg.Value)

	r.requests.Push(repository)
}

func (r Router) logInfo(level int, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.V(level).Info(msg, keysAndValues...)
}

func (r Router) logError(err error, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.Error(err, msg, keysAndValues...)
}
