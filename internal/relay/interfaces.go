package relay

import (
	"context"

	"github.com/gerritevents/gerrit-events/pkg/wire"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_relay.go

// Publisher broadcasts wire messages to the subscribers.
type Publisher interface {
	Publish(ctx context.Context, msg wire.Message) error
	Close() error
}
