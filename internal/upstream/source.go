// Package upstream connects the relay to the review server event stream.
package upstream

import (
	"context"
	"errors"
)

// ErrStreamClosed is reported when the upstream ends the stream without error.
var ErrStreamClosed = errors.New("upstream stream closed")

// Session receives the raw upstream bytes.
// The data slice is only valid during the OnData call.
// OnClose is called exactly once, with the reason the stream ended.
type Session interface {
	OnData(data []byte)
	OnClose(err error)
}

// Source streams upstream events into a session until the upstream terminates.
// Stream always returns a non nil error: the stream is not supposed to end.
type Source interface {
	Stream(ctx context.Context, session Session) error
}
