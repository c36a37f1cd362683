package scheduler_test

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/mock/gomock"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/scheduler"
	"github.com/gerritevents/gerrit-events/internal/scheduler/mock"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
	"github.com/gerritevents/gerrit-events/pkg/wire"
)

var _ = Describe("Scheduler service", func() {
	var (
		ctrl       *gomock.Controller
		subscriber *mock.MockSubscriber
		registry   *prometheus.Registry
		clock      clockwork.FakeClock
		fetch      *FakeFetch
		messages   chan wire.Message
		service    scheduler.Service
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		subscriber = mock.NewMockSubscriber(ctrl)
		registry = prometheus.NewPedanticRegistry()
		clock = clockwork.NewFakeClock()
		fetch = NewFakeFetch()
		messages = make(chan wire.Message, 10)

		subscriber.EXPECT().Receive(gomock.Any()).DoAndReturn(func(ctx context.Context) (wire.Message, error) {
			select {
			case <-ctx.Done():
				return wire.Message{}, ctx.Err()
			case msg := <-messages:
				return msg, nil
			}
		}).AnyTimes()
		subscriber.EXPECT().Close().Return(nil).Times(1)

		queues := scheduler.NewQueues()

		router := scheduler.NewRouter(subscriber, []string{"ref-replication-done"}, map[string]entity.Repository{
			repoA.Name: repoA,
		}, queues)

		monitor, err := scheduler.NewMonitor(clock, queues.Beats, registry, scheduler.MonitorConfig{
			Period:    10 * time.Second,
			MaxMissed: 5,
			Namespace: "test",
		})
		Expect(err).NotTo(HaveOccurred())

		coalescing, err := scheduler.NewCoalescing(fetch, registry, pipeline.MetricsConfig{Namespace: "test"})
		Expect(err).NotTo(HaveOccurred())

		service = scheduler.NewService(router, monitor, coalescing, queues)
	})

	It("should coalesce the fetches requested by the relays", func(ctx SpecContext) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		done := make(chan error, 1)

		go func() {
			done <- service.Run(runCtx)
		}()

		messages <- wire.NewMessage(wire.DefaultTopic, entity.KindKeepalive, "ping")
		messages <- wire.NewMessage(wire.DefaultTopic, "ref-replication-done", "repoA")
		Eventually(fetch.started).Should(Receive(Equal("repoA")))

		messages <- wire.NewMessage(wire.DefaultTopic, "ref-replication-done", "repoA")
		messages <- wire.NewMessage(wire.DefaultTopic, "ref-replication-done", "unknown")
		messages <- wire.NewMessage(wire.DefaultTopic, "patchset-created", "repoA")
		messages <- wire.NewMessage(wire.DefaultTopic, "ref-replication-done", "repoA")
		Eventually(messages).Should(BeEmpty())
		Consistently(fetch.started, 50*time.Millisecond).ShouldNot(Receive())

		fetch.Release()
		Eventually(fetch.started).Should(Receive(Equal("repoA")))

		fetch.Release()
		Consistently(fetch.started, 50*time.Millisecond).ShouldNot(Receive())
		Expect(fetch.Runs("repoA")).To(Equal(2))

		cancel()

		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})

	It("should stop when the relays are silent for too long", func(ctx SpecContext) {
		done := make(chan error, 1)

		go func() {
			done <- service.Run(ctx)
		}()

		missed := func() float64 {
			families, err := registry.Gather()
			Expect(err).NotTo(HaveOccurred())

			family := findFamily(families, "test_missed_heartbeats")
			Expect(family).NotTo(BeNil())

			return family.Metric[0].Gauge.GetValue()
		}

		for i := range 4 {
			clock.BlockUntil(1)
			clock.Advance(10 * time.Second)
			Eventually(missed).Should(BeEquivalentTo(i + 1))
		}

		clock.BlockUntil(1)
		clock.Advance(10 * time.Second)

		Eventually(done).Should(Receive(MatchError(scheduler.ErrHeartbeatLost)))
	})
})
