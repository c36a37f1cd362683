package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
)

type State int

const (
	StateIdle State = iota
	StateInFlight
	StateInFlightQueued
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in_flight"
	case StateInFlightQueued:
		return "in_flight_queued"
	default:
		return "unknown"
	}
}

type Outcome string

const (
	OutcomeScheduled      Outcome = "scheduled"
	OutcomeCoalesced      Outcome = "coalesced"
	OutcomeAlreadyPending Outcome = "already_pending"
)

// Coalescing runs at most one fetch per repository at a time.
// Requests received while a fetch runs collapse into a single follow-up fetch,
// started as soon as the running one completes.
type Coalescing struct {
	fetch pipeline.Processing[entity.Repository]

	mu sync.Mutex
	// repositories with a running fetch, true when a follow-up is queued
	inFlight map[string]bool

	requests *prometheus.CounterVec

	logger *logr.Logger
}

func NewCoalescing(fetch pipeline.Processing[entity.Repository], registry prometheus.Registerer, config pipeline.MetricsConfig) (*Coalescing, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "requests_total",
		Help:      "Fetch requests by outcome.",
	}, []string{"outcome"})

	err := registry.Register(requests)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	return &Coalescing{
		fetch:    fetch,
		inFlight: map[string]bool{},
		requests: requests,
	}, nil
}

func (c *Coalescing) WithLogger(logger logr.Logger) *Coalescing {
	c.logger = &logger

	return c
}

// Request asks for a fetch of repository. It never blocks on the fetch itself.
// Once ctx is done no follow-up fetch is started.
func (c *Coalescing) Request(ctx context.Context, repository entity.Repository) Outcome {
	outcome := c.request(repository.Name)

	c.requests.WithLabelValues(string(outcome)).Inc()

	switch outcome {
	case OutcomeScheduled:
		c.logInfo(1, "Starting fetch", "project", repository.Name)

		go c.run(ctx, repository)
	case OutcomeCoalesced:
		c.logInfo(1, "Fetch in flight, queuing one more", "project", repository.Name)
	case OutcomeAlreadyPending:
		c.logInfo(1, "Fetch already pending", "project", repository.Name)
	}

	return outcome
}

func (c *Coalescing) request(key string) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	queued, inFlight := c.inFlight[key]

	switch {
	case !inFlight:
		c.inFlight[key] = false

		return OutcomeScheduled
	case !queued:
		c.inFlight[key] = true

		return OutcomeCoalesced
	default:
		return OutcomeAlreadyPending
	}
}

func (c *Coalescing) run(ctx context.Context, repository entity.Repository) {
	for {
		err := c.fetch.Process(ctx, repository)
		if err != nil {
			c.logError(err, "Fetch failed", "project", repository.Name)
		}

		if !c.complete(ctx, repository.Name) {
			return
		}

		c.logInfo(1, "Starting queued fetch", "project", repository.Name)
	}
}

// complete reports whether a queued follow-up must run now.
func (c *Coalescing) complete(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inFlight[key] || ctx.Err() != nil {
		delete(c.inFlight, key)

		return false
	}

	c.inFlight[key] = false

	return true
}

// State returns the current state of key.
func (c *Coalescing) State(key string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	queued, inFlight := c.inFlight[key]

	switch {
	case !inFlight:
		return StateIdle
	case queued:
		return StateInFlightQueued
	default:
		return StateInFlight
	}
}

func (c *Coalescing) logInfo(level int, msg string, keysAndValues ...any) {
	if c.logger == nil {
		return
	}

	c.logger.V(level).Info(msg, keysAndValues...)
}

func (c *Coalescing) logError(err error, msg string, keysAndValues ...any) {
	if c.logger == nil {
		return
	}

	c.logger.Error(err, msg, keysAndValues...)
}
