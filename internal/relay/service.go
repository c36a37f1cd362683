// Package relay republishes the accepted upstream events, interleaved with keepalives, to the subscribers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/queue"
	"github.com/gerritevents/gerrit-events/internal/upstream"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
)

var ErrUpstreamLost = errors.New("upstream lost")

// Queues owned by one relay instance.
type Queues struct {
	Records  *queue.Queue[[]byte]
	Outgoing *queue.Queue[entity.Event]
}

func NewQueues() Queues {
	return Queues{
		Records:  queue.New[[]byte](),
		Outgoing: queue.New[entity.Event](),
	}
}

type Pipelines struct {
	Record  pipeline.Processing[[]byte]
	Error   pipeline.ErrorProcessing
	Publish pipeline.Processing[entity.Event]
}

type Service struct {
	source    upstream.Source
	publisher Publisher
	emitter   Emitter

	queues    Queues
	pipelines Pipelines

	logger *logr.Logger
}

func NewService(source upstream.Source, publisher Publisher, emitter Emitter, queues Queues, pipelines Pipelines) Service {
	return Service{
		source:    source,
		publisher: publisher,
		emitter:   emitter,
		queues:    queues,
		pipelines: pipelines,
	}
}

func (s Service) WithLogger(logger logr.Logger) Service {
	s.logger = &logger

	return s
}

// Run relays events until the upstream terminates or ctx is done.
// The publisher is closed on return. Upstream termination is reported as ErrUpstreamLost.
func (s Service) Run(ctx context.Context) error {
	closePublisher := sync.OnceValue(s.publisher.Close)

	defer func() {
		err := closePublisher()
		if err != nil {
			s.logError(err, "Failed to close publisher")
		}
	}()

	session := upstream.NewLineSession(s.queues.Records)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.source.Stream(gCtx, session)
		if gCtx.Err() != nil {
			return gCtx.Err()
		}

		if err == nil {
			err = upstream.ErrStreamClosed
		}

		s.logError(err, "Upstream stream terminated, stopping relay")

		// Nothing else is sent from now on
		closeErr := closePublisher()
		if closeErr != nil {
			s.logError(closeErr, "Failed to close publisher")
		}

		return fmt.Errorf("%w: %w", ErrUpstreamLost, err)
	})

	g.Go(func() error {
		return s.emitter.Run(gCtx)
	})

	g.Go(func() error {
		return s.processRecords(gCtx)
	})

	g.Go(func() error {
		return s.publish(gCtx)
	})

	return g.Wait()
}

func (s Service) processRecords(ctx context.Context) error {
	for {
		record, err := s.queues.Records.Pop(ctx)
		if err != nil {
			return err
		}

		err = s.pipelines.Record.Process(ctx, record)
		if err != nil {
			s.processError(ctx, record, err)
		}
	}
}

func (s Service) processError(ctx context.Context, record []byte, pipelineError error) {
	if ctx.Err() != nil {
		return
	}

	processingError := pipeline.AsErrProcessingError(pipelineError)
	if processingError.Record == nil {
		processingError = processingError.WithRecord(record)
	}

	s.logError(pipelineError, "Dropping record", "category", processingError.Category)

	err := s.pipelines.Error.Process(ctx, processingError)
	if err != nil {
		s.logError(err, "Error pipeline failed",
			"record", string(record),
			"category", processingError.Category,
		)
	}
}

func (s Service) publish(ctx context.Context) error {
	for {
		event, err := s.queues.Outgoing.Pop(ctx)
		if err != nil {
			return err
		}

		err = s.pipelines.Publish.Process(ctx, event)
		if err != nil {
			s.logError(err, "Failed to publish event", "kind", event.Kind, "value", event.Value())
		}
	}
}

func (s Service) logError(err error, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.Error(err, msg, keysAndValues...)
}
