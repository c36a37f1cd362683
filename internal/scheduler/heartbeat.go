package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gerritevents/gerrit-events/internal/queue"
)

var ErrHeartbeatLost = errors.New("heartbeat lost")

type MonitorConfig struct {
	Period    time.Duration
	MaxMissed int
	Namespace string
}

// Monitor is the dead-man switch of the scheduler: it consumes at most one keepalive per period
// and gives up once MaxMissed consecutive periods went by without any.
// Keepalives queued during a stall are consumed one per period afterwards.
type Monitor struct {
	clock     clockwork.Clock
	period    time.Duration
	maxMissed int
	beats     *queue.Queue[string]

	mu     sync.Mutex
	missed int
	gauge  prometheus.Gauge

	logger *logr.Logger
}

func NewMonitor(clock clockwork.Clock, beats *queue.Queue[string], registry prometheus.Registerer, config MonitorConfig) (*Monitor, error) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: config.Namespace,
		Name:      "missed_heartbeats",
		Help:      "Consecutive heartbeat periods without keepalive.",
	})

	err := registry.Register(gauge)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	return &Monitor{
		clock:     clock,
		period:    config.Period,
		maxMissed: config.MaxMissed,
		beats:     beats,
		gauge:     gauge,
	}, nil
}

func (m *Monitor) WithLogger(logger logr.Logger) *Monitor {
	m.logger = &logger

	return m
}

// Run checks the keepalives every period until ctx is done or the heartbeat is lost.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			err := m.Tick()
			if err != nil {
				return err
			}
		}
	}
}

// Tick runs one check.
func (m *Monitor) Tick() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.beats.TryPop()
	if ok {
		if m.missed > 0 {
			m.logInfo(0, "Heartbeat back", "missed", m.missed)
		}

		m.missed = 0
		m.gauge.Set(0)

		return nil
	}

	m.missed++
	m.gauge.Set(float64(m.missed))

	if m.missed >= m.maxMissed {
		err := fmt.Errorf("%w: no keepalive for %d periods of %s", ErrHeartbeatLost, m.missed, m.period)
		m.logError(err, "Relays are gone, stopping")

		return err
	}

	m.logInfo(0, "Missed heartbeat", "missed", m.missed, "maxMissed", m.maxMissed)

	return nil
}

// Missed returns the consecutive empty checks so far. Safe to call while Run is active.
func (m *Monitor) Missed() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.missed
}

func (m *Monitor) logInfo(level int, msg string, keysAndValues ...any) {
	if m.logger == nil {
		return
	}

	m.logger.V(level).Info(msg, keysAndValues...)
}

func (m *Monitor) logError(err error, msg string, keysAndValues ...any) {
	if m.logger == nil {
		return
	}

	m.logger.Error(err, msg, keysAndValues...)
}
