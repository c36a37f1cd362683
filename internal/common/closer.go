package common

import (
	"context"
	"errors"
)

// CloseFunc releases a client created by the factory package.
type CloseFunc func(context.Context) error

// Closers runs every CloseFunc in reverse order of registration.
type Closers []CloseFunc

func (c *Closers) Add(closeFunc CloseFunc) {
	if closeFunc == nil {
		return
	}

	*c = append(*c, closeFunc)
}

func (c Closers) Close(ctx context.Context) error {
	errs := make([]error, 0, len(c))

	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i](ctx))
	}

	return errors.Join(errs...)
}

// CloseFuncOf adapts a Close method.
func CloseFuncOf(closeFunc func() error) CloseFunc {
	return func(context.Context) error {
		return closeFunc()
	}
}
