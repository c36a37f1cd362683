// Package transport carries wire messages between relays and schedulers over ZeroMQ PUB/SUB sockets.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-logr/logr"
	"github.com/go-zeromq/zmq4"
	"github.com/jonboulle/clockwork"

	"github.com/gerritevents/gerrit-events/pkg/wire"
)

const (
	DefaultIdleTimeout = 30 * time.Second

	maxDialDelay   = 30 * time.Second
	reconnectDelay = 200 * time.Millisecond
)

var (
	ErrPublisherClosed  = errors.New("publisher closed")
	ErrSubscriberClosed = errors.New("subscriber closed")
	ErrRelayIdle        = errors.New("relay idle")
)

// Publisher fans messages out to every connected subscriber.
// Messages sent while no subscriber is connected are lost.
type Publisher struct {
	socket zmq4.Socket

	mu     sync.Mutex
	closed bool
}

// NewPublisher binds a PUB socket on endpoint, e.g. tcp://*:5556.
func NewPublisher(ctx context.Context, endpoint string) (*Publisher, error) {
	socket := zmq4.NewPub(ctx)

	err := socket.Listen(endpoint)
	if err != nil {
		_ = socket.Close()

		return nil, fmt.Errorf("failed to listen on %s: %w", endpoint, err)
	}

	return &Publisher{socket: socket}, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (p *Publisher) Addr() net.Addr {
	return p.socket.Addr()
}

func (p *Publisher) Publish(ctx context.Context, msg wire.Message) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	err = p.socket.Send(zmq4.NewMsgFrom(msg.Frames()...))
	if err != nil {
		return fmt.Errorf("failed to send %s message: %w", msg.Kind, err)
	}

	return nil
}

// Close unbinds the socket. Subsequent Publish calls fail with ErrPublisherClosed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	return p.socket.Close()
}

// Subscriber receives the messages whose topic starts with the subscribed prefix from every dialed relay.
//
// Each relay gets its own SUB socket, fanned into one receive channel. A socket that fails, or that stays
// silent for longer than the idle timeout, is replaced by a new one dialing the same relay. Relays emit
// keepalives, so a live relay is never idle for long.
type Subscriber struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	topic       string
	clock       clockwork.Clock
	idleTimeout time.Duration

	frames    chan [][]byte
	closeOnce func() error

	logger *logr.Logger
}

// NewSubscriber creates a subscriber bound to ctx: canceling ctx closes every relay connection.
func NewSubscriber(ctx context.Context, topic string) *Subscriber {
	ret := &Subscriber{
		topic:       topic,
		clock:       clockwork.NewRealClock(),
		idleTimeout: DefaultIdleTimeout,
		frames:      make(chan [][]byte),
	}

	ret.ctx, ret.cancel = context.WithCancel(ctx)
	ret.closeOnce = sync.OnceValue(ret.close)

	return ret
}

func (s *Subscriber) WithLogger(logger logr.Logger) *Subscriber {
	s.logger = &logger

	return s
}

// WithIdleTimeout sets how long a relay connection may stay silent before it is dialed again.
// Zero or negative values keep the default.
func (s *Subscriber) WithIdleTimeout(timeout time.Duration) *Subscriber {
	if timeout > 0 {
		s.idleTimeout = timeout
	}

	return s
}

// Dial connects to every relay endpoint in the background and keeps each connection up until the
// subscriber is closed. Attempts are never exhausted: opts only tune the delays.
func (s *Subscriber) Dial(endpoints []string, opts ...retry.Option) {
	for _, endpoint := range endpoints {
		s.wg.Add(1)

		go s.connect(endpoint, opts)
	}
}

func (s *Subscriber) connect(endpoint string, opts []retry.Option) {
	defer s.wg.Done()

	for {
		err := s.session(endpoint, opts)
		if s.ctx.Err() != nil {
			return
		}

		s.logError(err, "Relay connection lost, dialing again", "endpoint", endpoint)

		select {
		case <-s.ctx.Done():
			return
		case <-s.clock.After(reconnectDelay):
		}
	}
}

// session dials endpoint then forwards its messages until the connection fails or stays idle.
func (s *Subscriber) session(endpoint string, opts []retry.Option) error {
	ctx, cancel := context.WithCancelCause(s.ctx)
	defer cancel(nil)

	socket, err := s.dial(ctx, endpoint, opts)
	if err != nil {
		return err
	}

	// Unblocks Recv when the session ends
	context.AfterFunc(ctx, func() {
		_ = socket.Close()
	})

	received := make(chan struct{}, 1)

	go s.watch(ctx, cancel, endpoint, received)

	for {
		msg, err := socket.Recv()
		if err != nil {
			cause := context.Cause(ctx)
			if cause != nil {
				return cause
			}

			return fmt.Errorf("failed to receive from %s: %w", endpoint, err)
		}

		select {
		case received <- struct{}{}:
		default:
		}

		select {
		case s.frames <- msg.Frames:
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}

// watch cancels the session once no message was received for the idle timeout.
func (s *Subscriber) watch(ctx context.Context, cancel context.CancelCauseFunc, endpoint string, received <-chan struct{}) {
	timer := s.clock.NewTimer(s.idleTimeout)
	defer timer.Stop()

	last := s.clock.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-received:
			last = s.clock.Now()
		case <-timer.Chan():
			elapsed := s.clock.Since(last)
			if elapsed < s.idleTimeout {
				timer.Reset(s.idleTimeout - elapsed)

				continue
			}

			cancel(fmt.Errorf("%w: nothing from %s for %s", ErrRelayIdle, endpoint, elapsed))

			return
		}
	}
}

func (s *Subscriber) dial(ctx context.Context, endpoint string, opts []retry.Option) (zmq4.Socket, error) {
	var ret zmq4.Socket

	opts = append([]retry.Option{retry.MaxDelay(maxDialDelay)}, opts...)
	opts = append(opts,
		retry.Attempts(0),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logInfo(1, "Retrying relay dial", "endpoint", endpoint, "attempt", n+1, "error", err.Error())
		}),
	)

	err := retry.Do(
		func() error {
			socket := zmq4.NewSub(ctx)

			err := socket.SetOption(zmq4.OptionSubscribe, s.topic)
			if err != nil {
				_ = socket.Close()

				return retry.Unrecoverable(fmt.Errorf("failed to subscribe to %q: %w", s.topic, err))
			}

			err = socket.Dial(endpoint)
			if err != nil {
				_ = socket.Close()

				return fmt.Errorf("failed to dial %s: %w", endpoint, err)
			}

			ret = socket

			return nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}

	s.logInfo(0, "Connected to relay", "endpoint", endpoint)

	return ret, nil
}

// Receive blocks until a message arrives from any relay, ctx is done or the subscriber is closed.
func (s *Subscriber) Receive(ctx context.Context) (wire.Message, error) {
	err := ctx.Err()
	if err != nil {
		return wire.Message{}, err
	}

	select {
	case <-ctx.Done():
		return wire.Message{}, ctx.Err()
	case <-s.ctx.Done():
		return wire.Message{}, ErrSubscriberClosed
	case frames := <-s.frames:
		return wire.Decode(frames)
	}
}

// Close stops every relay connection. It can be called several times.
func (s *Subscriber) Close() error {
	return s.closeOnce()
}

func (s *Subscriber) close() error {
	s.cancel()
	s.wg.Wait()

	return nil
}

func (s *Subscriber) logInfo(level int, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.V(level).Info(msg, keysAndValues...)
}

func (s *Subscriber) logError(err error, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.Error(err, msg, keysAndValues...)
}
