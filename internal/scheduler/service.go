// Package scheduler turns the events received from the relays into fetches of the local clones,
// one at a time per repository.
package scheduler

import (
	"context"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/queue"
)

// Queues owned by one scheduler instance.
type Queues struct {
	Beats    *queue.Queue[string]
	Requests *queue.Queue[entity.Repository]
}

func NewQueues() Queues {
	return Queues{
		Beats:    queue.New[string](),
		Requests: queue.New[entity.Repository](),
	}
}

type Service struct {
	router     Router
	monitor    *Monitor
	coalescing *Coalescing
	requests   *queue.Queue[entity.Repository]

	logger *logr.Logger
}

func NewService(router Router, monitor *Monitor, coalescing *Coalescing, queues Queues) Service {
	return Service{
		router:     router,
		monitor:    monitor,
		coalescing: coalescing,
		requests:   queues.Requests,
	}
}

func (s Service) WithLogger(logger logr.Logger) Service {
	s.logger = &logger

	return s
}

// Run schedules fetches until ctx is done or the relays are lost (ErrHeartbeatLost).
// Running fetches are not waited for.
func (s Service) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.router.Run(gCtx)
	})

	g.Go(func() error {
		return s.monitor.Run(gCtx)
	})

	g.Go(func() error {
		for {
			repository, err := s.requests.Pop(gCtx)
			if err != nil {
				return err
			}

			s.coalescing.Request(gCtx, repository)
		}
	})

	err := g.Wait()

	if s.logger != nil {
		s.logger.V(1).Info("Scheduler stopped", "reason", err)
	}

	return err
}
