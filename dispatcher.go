package lambdafn

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog"
)

// Dispatcher hands each record of a batch to a Handler[T] resolved from a
// Registry.
//
// Every record gets its own Scope. The flow for one record is:
//  1. Acquire a scope
//  2. Deserialize the body to T and validate it
//  3. Resolve Handler[T] in the scope
//  4. Call the handler
//  5. Release the scope, whatever the outcome
//
// In batch response mode a failing record is reported in the BatchResponse
// and the remaining records are still processed. Otherwise the first failure
// is returned as the error of Dispatch. A handler that cannot be resolved is
// always returned as an error, since no record could be processed.
//
// Dispatcher is safe for concurrent use.
type Dispatcher[T any] struct {
	registry *Registry
	opts     options
}

// New creates a Dispatcher for messages of type T.
//
// Configuration is validated here so that invalid settings never reach a
// batch: a non-positive degree of parallelism returns ErrInvalidParallelism
// and a registry without Handler[T] returns a *ResolutionError wrapping
// ErrNoHandler.
//
// Example:
//
//	reg := lambdafn.NewRegistry()
//	lambdafn.RegisterHandler(reg, newOrderPlacedHandler, lambdafn.Transient)
//
//	d, err := lambdafn.New[OrderPlaced](reg,
//	    lambdafn.WithParallelism(4),
//	    lambdafn.WithBatchResponse(true),
//	)
func New[T any](reg *Registry, opts ...Option) (*Dispatcher[T], error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	if !Has[T](reg) {
		return nil, &ResolutionError{Type: typeName[Handler[T]](), Err: ErrNoHandler}
	}

	return &Dispatcher[T]{registry: reg, opts: o}, nil
}

// Mode returns the dispatch strategy.
func (d *Dispatcher[T]) Mode() Mode { return d.opts.mode }

// Parallelism returns the maximum number of records in flight. It is always
// 1 in Sequential mode.
func (d *Dispatcher[T]) Parallelism() int {
	if d.opts.mode == Sequential {
		return 1
	}
	return d.opts.parallelism
}

// BatchResponse reports whether batch response mode is enabled.
func (d *Dispatcher[T]) BatchResponse() bool { return d.opts.batchResponse }

// Dispatch processes records and returns the batch response.
//
// An empty batch returns an empty response without resolving anything. In
// fire-and-forget mode the returned response is always empty and the first
// record failure is returned as a *RecordError.
func (d *Dispatcher[T]) Dispatch(ctx context.Context, records []Record) (BatchResponse, error) {
	if len(records) == 0 {
		return BatchResponse{Failures: []FailureEntry{}}, nil
	}

	var (
		resp BatchResponse
		err  error
	)
	switch d.opts.mode {
	case Parallel:
		resp, err = d.dispatchParallel(ctx, records)
	default:
		resp, err = d.dispatchSequential(ctx, records)
	}

	d.opts.hooks.complete(ctx, len(records), resp, err)
	return resp, err
}

func (d *Dispatcher[T]) dispatchSequential(ctx context.Context, records []Record) (BatchResponse, error) {
	var failures failureCollector
	for _, rec := range records {
		err := d.process(ctx, rec)
		if err == nil {
			continue
		}
		if IsFatal(err) || !d.opts.batchResponse {
			return BatchResponse{}, err
		}
		d.recordFailure(&failures, rec, err)
	}
	return failures.response(), nil
}

func (d *Dispatcher[T]) recordFailure(c *failureCollector, rec Record, err error) {
	d.opts.logger.Error().Err(err).Str("record_id", rec.ID).Msg("recording batch item failure")
	c.add(rec.ID)
}

// process handles one record inside its own scope. Non-fatal failures are
// returned as *RecordError.
func (d *Dispatcher[T]) process(ctx context.Context, rec Record) error {
	scope := NewScope()
	logger := invocationLogger(ctx, d.opts.logger).
		Str("record_id", rec.ID).
		Str("scope_id", scope.ID()).
		Logger()

	ctx = withRecord(withScope(ctx, scope), rec)
	ctx = logger.WithContext(ctx)

	defer func() {
		err := scope.Release(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("release scope")
		}
		d.opts.hooks.release(ctx, rec, err)
	}()

	d.opts.hooks.dispatch(ctx, rec)
	logger.Debug().Str("body", rec.Body).Msg("message received")

	start := time.Now()
	err := d.invoke(ctx, logger, scope, rec)
	duration := time.Since(start)

	if err != nil {
		if IsFatal(err) {
			return err
		}
		d.opts.hooks.failure(ctx, rec, err, duration)
		return &RecordError{ID: rec.ID, Err: err}
	}

	d.opts.hooks.success(ctx, rec, duration)
	return nil
}

func (d *Dispatcher[T]) invoke(ctx context.Context, logger zerolog.Logger, scope *Scope, rec Record) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()

	msg, err := deserialize[T](d.opts.serializer, rec.Body)
	if err != nil {
		return err
	}

	res := Resolve[T](ctx, d.registry, scope)
	if res.Status != Found {
		err := res.Err()
		logger.Error().Err(err).Msg("no handler could be resolved")
		return err
	}

	logger.Info().Msg("invoking handler")
	return res.Value.Handle(ctx, msg)
}

// invocationLogger starts a child logger of l, tagged with the Lambda request
// id when ctx carries one.
func invocationLogger(ctx context.Context, l zerolog.Logger) zerolog.Context {
	c := l.With()
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		c = c.Str("aws_request_id", lc.AwsRequestID)
	}
	return c
}
