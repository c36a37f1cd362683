package scheduler

import (
	"context"

	"github.com/gerritevents/gerrit-events/pkg/wire"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_scheduler.go

// Subscriber receives the messages published by the relays.
type Subscriber interface {
	Receive(ctx context.Context) (wire.Message, error)
	Close() error
}
