package stores

import (
	"context"
	"errors"
)

type closer interface {
	Close() error
}

type contextCloser interface {
	Close(ctx context.Context) error
}

type healthChecker interface {
	Health(ctx context.Context) error
}

// Health pings every backend that can report its own health. Backends
// without a remote connection are always healthy.
func Health(ctx context.Context, backends ...any) error {
	var errs []error
	for _, backend := range backends {
		if checker, ok := backend.(healthChecker); ok {
			errs = append(errs, checker.Health(ctx))
		}
	}
	return errors.Join(errs...)
}

// Close releases the connections held by backends, in order.
func Close(ctx context.Context, backends ...any) error {
	var errs []error
	for _, backend := range backends {
		switch b := backend.(type) {
		case contextCloser:
			errs = append(errs, b.Close(ctx))
		case closer:
			errs = append(errs, b.Close())
		}
	}
	return errors.Join(errs...)
}
