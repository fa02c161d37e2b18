package sink

import (
	"context"

	"codeberg.org/mutker/ecodanctl/internal/errors"
)

// Multi writes every batch to all of its writers, even when some fail, and
// joins their errors.
type Multi []Writer

func (m Multi) Write(ctx context.Context, points []Point) error {
	var errs []error
	for _, w := range m {
		if err := w.Write(ctx, points); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, w := range m {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
