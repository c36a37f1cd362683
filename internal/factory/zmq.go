package factory

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"

	"github.com/gerritevents/gerrit-events/internal/common"
	"github.com/gerritevents/gerrit-events/internal/config"
	"github.com/gerritevents/gerrit-events/internal/log"
	"github.com/gerritevents/gerrit-events/internal/transport"
)

// CreatePublisher binds the relay PUB socket on every interface.
func CreatePublisher(ctx context.Context, conf config.Publish) (*transport.Publisher, error) {
	ret, err := transport.NewPublisher(ctx, fmt.Sprintf("tcp://*:%d", conf.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	return ret, nil
}

// CreateSubscriber subscribes to the topic of every relay. Each relay is dialed until it answers, and dialed again
// whenever its connection is lost or stays idle.
func CreateSubscriber(ctx context.Context, conf config.Scheduler) (*transport.Subscriber, common.CloseFunc, error) {
	if len(conf.Relays) == 0 {
		return nil, nil, fmt.Errorf("no relay configured")
	}

	ret := transport.NewSubscriber(ctx, conf.Topic).
		WithLogger(log.Logger().WithName("subscriber")).
		WithIdleTimeout(conf.Dial.IdleTimeout)

	ret.Dial(conf.Relays,
		retry.Delay(conf.Dial.Delay),
		retry.MaxDelay(conf.Dial.MaxDelay),
	)

	return ret, common.CloseFuncOf(ret.Close), nil
}
