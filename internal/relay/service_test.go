package relay_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/relay"
	"github.com/gerritevents/gerrit-events/internal/relay/mock"
	"github.com/gerritevents/gerrit-events/internal/upstream"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
	pipelinemock "github.com/gerritevents/gerrit-events/pkg/pipeline/mock"
	"github.com/gerritevents/gerrit-events/pkg/wire"
)

func TestRelayService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Relay service test suite")
}

// Helper

// fakeSource sends its chunks then holds the stream open until released.
type fakeSource struct {
	chunks  []string
	release chan struct{}
}

func (f fakeSource) Stream(ctx context.Context, session upstream.Session) error {
	for _, chunk := range f.chunks {
		session.OnData([]byte(chunk))
	}

	var err error

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-f.release:
		err = upstream.ErrStreamClosed
	}

	session.OnClose(err)

	return err
}

// endingSource ends the stream without reporting any error.
type endingSource struct{}

func (endingSource) Stream(_ context.Context, session upstream.Session) error {
	session.OnClose(nil)

	return nil
}

type sentMessages struct {
	mu       sync.Mutex
	messages []wire.Message
}

func (s *sentMessages) add(_ context.Context, msg wire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)

	return nil
}

func (s *sentMessages) nonKeepalive() []wire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := []wire.Message{}

	for _, msg := range s.messages {
		if msg.Kind != entity.KindKeepalive {
			ret = append(ret, msg)
		}
	}

	return ret
}

func (s *sentMessages) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.messages)
}

// Tests

var _ = Describe("Relay service", func() {
	var (
		ctrl            *gomock.Controller
		publisher       *mock.MockPublisher
		errorProcessing *pipelinemock.MockProcessing[pipeline.ErrProcessingError]
		clock           clockwork.FakeClock
		sent            *sentMessages
		source          fakeSource
		done            chan error
	)

	newService := func(chunks ...string) relay.Service {
		source = fakeSource{chunks: chunks, release: make(chan struct{})}
		queues := relay.NewQueues()

		return relay.NewService(
			source,
			publisher,
			relay.NewEmitter(clock, 10*time.Second, queues.Outgoing),
			queues,
			relay.Pipelines{
				Record:  relay.NewMain(relay.NewDecoder([]string{"ref-replication-done"}), queues.Outgoing),
				Error:   errorProcessing,
				Publish: relay.NewPublishing(publisher, wire.DefaultTopic),
			},
		)
	}

	run := func(ctx context.Context, service relay.Service) {
		go func() {
			defer GinkgoRecover()

			done <- service.Run(ctx)
		}()
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		publisher = mock.NewMockPublisher(ctrl)
		errorProcessing = pipelinemock.NewMockProcessing[pipeline.ErrProcessingError](ctrl)
		clock = clockwork.NewFakeClock()
		sent = &sentMessages{}
		done = make(chan error, 1)

		publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(sent.add).AnyTimes()
	})

	It("should only publish accepted events, plus keepalives", func(ctx SpecContext) {
		publisher.EXPECT().Close().Return(nil).Times(1)

		service := newService(
			`{"type":"patchset-created","project":"repoA"}`+"\n",
			`{"type":"ref-replication-`,
			`done","project":"repoA"}`+"\n",
		)

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		run(runCtx, service)

		Eventually(sent.nonKeepalive).Should(Equal([]wire.Message{
			wire.NewMessage(wire.DefaultTopic, "ref-replication-done", "repoA"),
		}))
		Consistently(sent.nonKeepalive, 100*time.Millisecond).Should(HaveLen(1))

		// Initial keepalive, then one per period
		Expect(sent.count()).To(Equal(2))

		clock.BlockUntil(1)
		clock.Advance(10 * time.Second)

		Eventually(sent.count).Should(Equal(3))

		cancel()

		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})

	It("should close the publisher and fail when the upstream terminates", func(ctx SpecContext) {
		publisher.EXPECT().Close().Return(nil).Times(1)

		service := newService()

		run(ctx, service)

		Eventually(sent.count).Should(Equal(1))

		close(source.release)

		var err error

		Eventually(done).Should(Receive(&err))
		Expect(err).To(MatchError(relay.ErrUpstreamLost))
		Expect(err).To(MatchError(upstream.ErrStreamClosed))
	})

	It("should report a lost upstream even when the source ends without error", func(ctx SpecContext) {
		publisher.EXPECT().Close().Return(nil).Times(1)

		queues := relay.NewQueues()
		service := relay.NewService(
			endingSource{},
			publisher,
			relay.NewEmitter(clock, 10*time.Second, queues.Outgoing),
			queues,
			relay.Pipelines{
				Record:  relay.NewMain(relay.NewDecoder([]string{"ref-replication-done"}), queues.Outgoing),
				Error:   errorProcessing,
				Publish: relay.NewPublishing(publisher, wire.DefaultTopic),
			},
		)

		run(ctx, service)

		var err error

		Eventually(done).Should(Receive(&err))
		Expect(err).To(MatchError(relay.ErrUpstreamLost))
		Expect(err).To(MatchError(upstream.ErrStreamClosed))
		Expect(err.Error()).NotTo(ContainSubstring("%!"))
	})

	It("should send malformed records to the error pipeline", func(ctx SpecContext) {
		publisher.EXPECT().Close().Return(nil).Times(1)

		received := make(chan pipeline.ErrProcessingError, 1)

		errorProcessing.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, processingError pipeline.ErrProcessingError) error {
				received <- processingError

				return nil
			},
		).Times(1)

		service := newService(
			`{"type":"ref-replication-done"}`+"\n",
			`{"type":"ref-replication-done","project":"repoB"}`+"\n",
		)

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		run(runCtx, service)

		var processingError pipeline.ErrProcessingError

		Eventually(received).Should(Receive(&processingError))
		Expect(processingError.Category).To(Equal(relay.CategoryMalformedEvent))
		Expect(string(processingError.Record)).To(Equal(`{"type":"ref-replication-done"}`))
		Expect(processingError).To(MatchError(relay.ErrMalformedEvent))

		// The relay keeps going
		Eventually(sent.nonKeepalive).Should(Equal([]wire.Message{
			wire.NewMessage(wire.DefaultTopic, "ref-replication-done", "repoB"),
		}))

		cancel()

		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})
})
