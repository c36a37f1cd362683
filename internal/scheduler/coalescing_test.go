package scheduler_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gerritevents/gerrit-events/internal/scheduler"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
)

var _ = Describe("Coalescing scheduler", func() {
	var (
		registry   *prometheus.Registry
		fetch      *FakeFetch
		coalescing *scheduler.Coalescing
	)

	BeforeEach(func() {
		var err error

		registry = prometheus.NewPedanticRegistry()
		fetch = NewFakeFetch()

		coalescing, err = scheduler.NewCoalescing(fetch, registry, pipeline.MetricsConfig{Namespace: "test"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should start a fetch right away for an idle repository", func(ctx SpecContext) {
		Expect(coalescing.State(repoA.Name)).To(Equal(scheduler.StateIdle))

		Expect(coalescing.Request(ctx, repoA)).To(Equal(scheduler.OutcomeScheduled))
		Expect(coalescing.State(repoA.Name)).To(Equal(scheduler.StateInFlight))
		Eventually(fetch.started).Should(Receive(Equal(repoA.Name)))

		fetch.Release()

		Eventually(func() scheduler.State { return coalescing.State(repoA.Name) }).Should(Equal(scheduler.StateIdle))
		Expect(fetch.Runs(repoA.Name)).To(Equal(1))
	})

	It("should collapse requests received during a fetch into exactly one follow-up", func(ctx SpecContext) {
		Expect(coalescing.Request(ctx, repoA)).To(Equal(scheduler.OutcomeScheduled))
		Eventually(fetch.started).Should(Receive())

		Expect(coalescing.Request(ctx, repoA)).To(Equal(scheduler.OutcomeCoalesced))
		for range 10 {
			Expect(coalescing.Request(ctx, repoA)).To(Equal(scheduler.OutcomeAlreadyPending))
		}

		Expect(coalescing.State(repoA.Name)).To(Equal(scheduler.StateInFlightQueued))
		Consistently(fetch.started, 50*time.Millisecond).ShouldNot(Receive())

		By("completing the first fetch")
		fetch.Release()

		Eventually(fetch.started).Should(Receive(Equal(repoA.Name)))
		Expect(coalescing.State(repoA.Name)).To(Equal(scheduler.StateInFlight))

		By("completing the follow-up")
		fetch.Release()

		Eventually(func() scheduler.State { return coalescing.State(repoA.Name) }).Should(Equal(scheduler.StateIdle))
		Consistently(fetch.started, 50*time.Millisecond).ShouldNot(Receive())

		Expect(fetch.Runs(repoA.Name)).To(Equal(2))
		Expect(fetch.MaxActive(repoA.Name)).To(Equal(1))

		By("counting requests by outcome")
		families, err := registry.Gather()
		Expect(err).NotTo(HaveOccurred())

		requests := findFamily(families, "test_requests_total")
		Expect(requests).NotTo(BeNil())
		Expect(*filterMetricByLabel(requests.Metric, "outcome", "scheduled").Counter.Value).To(BeEquivalentTo(1))
		Expect(*filterMetricByLabel(requests.Metric, "outcome", "coalesced").Counter.Value).To(BeEquivalentTo(1))
		Expect(*filterMetricByLabel(requests.Metric, "outcome", "already_pending").Counter.Value).To(BeEquivalentTo(10))
	})

	It("should run different repositories concurrently", func(ctx SpecContext) {
		Expect(coalescing.Request(ctx, repoA)).To(Equal(scheduler.OutcomeScheduled))
		Expect(coalescing.Request(ctx, repoB)).To(Equal(scheduler.OutcomeScheduled))

		Eventually(fetch.started).Should(Receive())
		Eventually(fetch.started).Should(Receive())

		Expect(coalescing.State(repoA.Name)).To(Equal(scheduler.StateInFlight))
		Expect(coalescing.State(repoB.Name)).To(Equal(scheduler.StateInFlight))

		fetch.Release()
		fetch.Release()

		Eventually(func() scheduler.State { return coalescing.State(repoA.Name) }).Should(Equal(scheduler.StateIdle))
		Eventually(func() scheduler.State { return coalescing.State(repoB.Name) }).Should(Equal(scheduler.StateIdle))
	})

	It("should run twice for three requests received while the first run lasts", func(ctx SpecContext) {
		fetch.Duration = 500 * time.Millisecond

		Expect(coalescing.Request(ctx, repoA)).To(Equal(scheduler.OutcomeScheduled))
		time.Sleep(100 * time.Millisecond)
		Expect(coalescing.Request(ctx, repoA)).To(Equal(scheduler.OutcomeCoalesced))
		time.Sleep(100 * time.Millisecond)
		Expect(coalescing.Request(ctx, repoA)).To(Equal(scheduler.OutcomeAlreadyPending))

		Eventually(func() int { return fetch.Runs(repoA.Name) }).Should(Equal(2))
		Eventually(func() scheduler.State { return coalescing.State(repoA.Name) }, 2*time.Second).Should(Equal(scheduler.StateIdle))
		Consistently(func() int { return fetch.Runs(repoA.Name) }, 200*time.Millisecond).Should(Equal(2))

		Expect(fetch.MaxActive(repoA.Name)).To(Equal(1))
	})

	It("should not start the follow-up once the context is done", func(ctx SpecContext) {
		runCtx, cancel := context.WithCancel(ctx)

		Expect(coalescing.Request(runCtx, repoA)).To(Equal(scheduler.OutcomeScheduled))
		Eventually(fetch.started).Should(Receive())
		Expect(coalescing.Request(runCtx, repoA)).To(Equal(scheduler.OutcomeCoalesced))

		cancel()
		fetch.Release()

		Eventually(func() scheduler.State { return coalescing.State(repoA.Name) }).Should(Equal(scheduler.StateIdle))
		Expect(fetch.Runs(repoA.Name)).To(Equal(1))
	})
})
