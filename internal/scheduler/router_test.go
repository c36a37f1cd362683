package scheduler_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/scheduler"
	"github.com/gerritevents/gerrit-events/internal/scheduler/mock"
	"github.com/gerritevents/gerrit-events/pkg/wire"
)

var _ = Describe("Router", func() {
	var (
		queues scheduler.Queues
		router scheduler.Router
	)

	BeforeEach(func() {
		queues = scheduler.NewQueues()
		router = scheduler.NewRouter(nil, []string{"ref-replication-done"}, map[string]entity.Repository{
			repoA.Name: repoA,
		}, queues)
	})

	DescribeTable("dispatching messages",
		func(msg wire.Message, beats, requests int) {
			router.Dispatch(msg)

			Expect(queues.Beats.Len()).To(Equal(beats))
			Expect(queues.Requests.Len()).To(Equal(requests))
		},
		Entry("keepalive", wire.NewMessage(wire.DefaultTopic, entity.KindKeepalive, entity.KeepaliveValue), 1, 0),
		Entry("trigger for a known project", wire.NewMessage(wire.DefaultTopic, "ref-replication-done", "repoA"), 0, 1),
		Entry("trigger for an unknown project", wire.NewMessage(wire.DefaultTopic, "ref-replication-done", "repoZ"), 0, 0),
		Entry("other kind", wire.NewMessage(wire.DefaultTopic, "patchset-created", "repoA"), 0, 0),
		Entry("empty kind", wire.NewMessage(wire.DefaultTopic, "", ""), 0, 0),
	)

	It("should request the resolved repository", func() {
		router.Dispatch(wire.NewMessage(wire.DefaultTopic, "ref-replication-done", "repoA"))

		repository, ok := queues.Requests.TryPop()
		Expect(ok).To(BeTrue())
		Expect(repository).To(Equal(repoA))
	})

	When("receiving from the subscriber", func() {
		var (
			ctrl       *gomock.Controller
			subscriber *mock.MockSubscriber
			closed     chan struct{}
		)

		BeforeEach(func() {
			ctrl = gomock.NewController(GinkgoT())
			subscriber = mock.NewMockSubscriber(ctrl)
			closed = make(chan struct{})

			router = scheduler.NewRouter(subscriber, []string{"ref-replication-done"}, map[string]entity.Repository{
				repoA.Name: repoA,
			}, queues)
		})

		It("should skip invalid messages and close the subscriber on exit", func(ctx SpecContext) {
			runCtx, cancel := context.WithCancel(ctx)

			gomock.InOrder(
				subscriber.EXPECT().Receive(gomock.Any()).Return(wire.NewMessage(wire.DefaultTopic, entity.KindKeepalive, "ping"), nil),
				subscriber.EXPECT().Receive(gomock.Any()).Return(wire.Message{}, fmt.Errorf("%w: expected 3 frames, got 1", wire.ErrInvalidMessage)),
				subscriber.EXPECT().Receive(gomock.Any()).Return(wire.NewMessage(wire.DefaultTopic, "ref-replication-done", "repoA"), nil),
				subscriber.EXPECT().Receive(gomock.Any()).DoAndReturn(func(ctx context.Context) (wire.Message, error) {
					<-ctx.Done()

					return wire.Message{}, ctx.Err()
				}),
			)

			subscriber.EXPECT().Close().DoAndReturn(func() error {
				close(closed)

				return nil
			}).Times(1)

			done := make(chan error, 1)

			go func() {
				done <- router.Run(runCtx)
			}()

			Eventually(queues.Requests.Len).Should(Equal(1))
			Expect(queues.Beats.Len()).To(Equal(1))

			cancel()

			Eventually(done).Should(Receive(MatchError(context.Canceled)))
			Eventually(closed).Should(BeClosed())
		})

		It("should fail when the subscriber fails", func(ctx SpecContext) {
			errBroken := errors.New("socket broken")

			subscriber.EXPECT().Receive(gomock.Any()).Return(wire.Message{}, errBroken)
			subscriber.EXPECT().Close().Return(nil).AnyTimes()

			Expect(router.Run(ctx)).To(MatchError(errBroken))
		})
	})
})
