package viewstate

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Loader is anything that can refresh itself, typically a bound Controller.Load.
type Loader func(ctx context.Context) error

// LoadAll runs every loader concurrently and waits for all of them. Each
// controller records its own failure, so one failing load does not cancel the
// others. The first error is returned.
func LoadAll(ctx context.Context, loaders ...Loader) error {
	var g errgroup.Group
	for _, load := range loaders {
		g.Go(func() error {
			return load(ctx)
		})
	}
	return g.Wait()
}
