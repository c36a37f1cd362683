package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/domain/repo/mock"
	"github.com/gerritevents/gerrit-events/internal/scheduler"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
)

var _ = Describe("History recorder", func() {
	var (
		ctrl     *gomock.Controller
		writer   *mock.MockFetchHistoryWriter
		clock    clockwork.FakeClock
		fetchErr error
		recorder scheduler.HistoryRecorder
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		writer = mock.NewMockFetchHistoryWriter(ctrl)
		clock = clockwork.NewFakeClockAt(time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC))
		fetchErr = nil

		fetch := pipeline.ProcessingFunc[entity.Repository](func(context.Context, entity.Repository) error {
			clock.Advance(3 * time.Second)

			return fetchErr
		})

		recorder = scheduler.NewHistoryRecorder(fetch, writer, clock, "scheduler-1")
	})

	It("should record a successful fetch", func(ctx SpecContext) {
		writer.EXPECT().WriteFetchRecord(gomock.Any(), entity.FetchRecord{
			Project:   "repoA",
			Host:      "scheduler-1",
			StartedAt: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
			Duration:  3 * time.Second,
		}).Return(nil)

		Expect(recorder.Process(ctx, repoA)).To(Succeed())
	})

	It("should record the exit code of a failed fetch and return its error", func(ctx SpecContext) {
		exitErr := exec.Command("sh", "-c", "exit 3").Run()
		Expect(exitErr).To(HaveOccurred())

		fetchErr = fmt.Errorf("%w: repoA: %w", scheduler.ErrFetchFailed, exitErr)

		writer.EXPECT().WriteFetchRecord(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, record entity.FetchRecord) error {
				Expect(record.ExitCode).To(Equal(3))
				Expect(record.Error).To(Equal(fetchErr.Error()))
				Expect(record.Failed()).To(BeTrue())

				return nil
			},
		)

		Expect(recorder.Process(ctx, repoA)).To(MatchError(scheduler.ErrFetchFailed))
	})

	It("should not fail the fetch when the history is unavailable", func(ctx SpecContext) {
		writer.EXPECT().WriteFetchRecord(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

		Expect(recorder.Process(ctx, repoA)).To(Succeed())
	})
})
