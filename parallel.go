package lambdafn

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// dispatchParallel runs a fixed pool of workers over records. Workers claim
// indices from a shared cursor, so each record is processed exactly once and
// a worker's own records are processed in batch order. At most
// d.opts.parallelism records are between scope acquire and release at any
// instant.
//
// After a failure that ends the invocation (any failure in fire-and-forget
// mode, a resolution failure in either mode) workers stop claiming records.
// Records already in flight are not cancelled; they finish and the first
// error is returned once every worker has exited.
func (d *Dispatcher[T]) dispatchParallel(ctx context.Context, records []Record) (BatchResponse, error) {
	var (
		failures failureCollector
		cursor   atomic.Int64
		stopped  atomic.Bool
		g        errgroup.Group
	)

	n := int64(len(records))
	workers := min(d.opts.parallelism, len(records))

	d.opts.logger.Debug().
		Int("records", len(records)).
		Int("workers", workers).
		Msg("dispatching batch in parallel")

	for range workers {
		g.Go(func() error {
			for !stopped.Load() {
				i := cursor.Add(1) - 1
				if i >= n {
					return nil
				}

				rec := records[i]
				err := d.process(ctx, rec)
				if err == nil {
					continue
				}
				if d.opts.batchResponse && !IsFatal(err) {
					d.recordFailure(&failures, rec, err)
					continue
				}

				stopped.Store(true)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return BatchResponse{}, err
	}
	return failures.response(), nil
}
