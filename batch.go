package fetchkit

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FetchAll runs every request through e concurrently and returns the
// responses in request order. The engine queue bounds how many reach the
// transport at once. The first error cancels the remaining requests and is
// returned; an offline absence leaves a nil slot.
func FetchAll(ctx context.Context, e *Engine, reqs []Request) ([]*Response, error) {
	responses := make([]*Response, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			resp, err := e.Do(gctx, req)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}
