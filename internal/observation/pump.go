package observation

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// Feed is one recorded recognizer stream.
type Feed struct {
	Name   string
	Reader io.Reader
}

// Consumer handles one observation. Returning stop=true ends every feed.
type Consumer func(ctx context.Context, raw Raw) (stop bool, err error)

// Pump drains feeds concurrently, in order within each feed, until every
// feed is exhausted, the consumer asks to stop, or ctx is cancelled. There
// is no ordering between feeds.
func Pump(ctx context.Context, feeds []Feed, consume Consumer) error {
	if consume == nil {
		return fmt.Errorf("observation consumer is required")
	}
	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	for _, feed := range feeds {
		g.Go(func() error {
			for raw, err := range Decode(feed.Reader) {
				if err != nil {
					return fmt.Errorf("feed %s: %w", feed.Name, err)
				}
				if runCtx.Err() != nil {
					return nil
				}
				done, err := consume(runCtx, raw)
				if err != nil {
					return fmt.Errorf("feed %s: %w", feed.Name, err)
				}
				if done {
					stop()
					return nil
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
