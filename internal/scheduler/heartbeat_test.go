package scheduler_test

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gerritevents/gerrit-events/internal/queue"
	"github.com/gerritevents/gerrit-events/internal/scheduler"
)

var _ = Describe("Heartbeat monitor", func() {
	var (
		registry *prometheus.Registry
		clock    clockwork.FakeClock
		beats    *queue.Queue[string]
		monitor  *scheduler.Monitor
	)

	BeforeEach(func() {
		var err error

		registry = prometheus.NewPedanticRegistry()
		clock = clockwork.NewFakeClock()
		beats = queue.New[string]()

		monitor, err = scheduler.NewMonitor(clock, beats, registry, scheduler.MonitorConfig{
			Period:    10 * time.Second,
			MaxMissed: 5,
			Namespace: "test",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reset the counter whenever a keepalive is consumed", func() {
		for range 4 {
			Expect(monitor.Tick()).To(Succeed())
		}

		Expect(monitor.Missed()).To(Equal(4))

		beats.Push("ping")

		Expect(monitor.Tick()).To(Succeed())
		Expect(monitor.Missed()).To(Equal(0))

		Expect(monitor.Tick()).To(Succeed())
		Expect(monitor.Missed()).To(Equal(1))

		families, err := registry.Gather()
		Expect(err).NotTo(HaveOccurred())
		Expect(families).To(HaveLen(1))
		Expect(*families[0].Metric[0].Gauge.Value).To(BeEquivalentTo(1))
	})

	It("should give up on exactly the fifth empty tick", func() {
		for range 4 {
			Expect(monitor.Tick()).To(Succeed())
		}

		Expect(monitor.Tick()).To(MatchError(scheduler.ErrHeartbeatLost))
		Expect(monitor.Missed()).To(Equal(5))
	})

	It("should consume a single keepalive per tick", func() {
		beats.Push("ping")
		beats.Push("ping")
		beats.Push("ping")

		for range 3 {
			Expect(monitor.Tick()).To(Succeed())
			Expect(monitor.Missed()).To(Equal(0))
		}

		Expect(monitor.Tick()).To(Succeed())
		Expect(monitor.Missed()).To(Equal(1))
	})

	It("should stop running once the heartbeat is lost", func(ctx SpecContext) {
		missed := func() float64 {
			families, err := registry.Gather()
			Expect(err).NotTo(HaveOccurred())

			return families[0].Metric[0].Gauge.GetValue()
		}

		done := make(chan error, 1)

		go func() {
			done <- monitor.Run(ctx)
		}()

		beats.Push("ping")

		// The first check happens one period after start
		clock.BlockUntil(1)
		clock.Advance(10 * time.Second)
		Eventually(beats.Len).Should(Equal(0))

		for i := range 4 {
			clock.BlockUntil(1)
			clock.Advance(10 * time.Second)
			Eventually(missed).Should(BeEquivalentTo(i + 1))
			Expect(monitor.Missed()).To(Equal(i + 1))
		}

		Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

		clock.BlockUntil(1)
		clock.Advance(10 * time.Second)

		Eventually(done).Should(Receive(MatchError(scheduler.ErrHeartbeatLost)))
	})

	It("should report the missed checks while running", func(ctx SpecContext) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			_ = monitor.Run(runCtx)
		}()

		for i := range 3 {
			clock.BlockUntil(1)
			clock.Advance(10 * time.Second)
			Eventually(monitor.Missed).Should(Equal(i + 1))
		}
	})

	It("should stop running when the context is done", func(ctx SpecContext) {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)

		go func() {
			done <- monitor.Run(runCtx)
		}()

		cancel()

		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})
})
