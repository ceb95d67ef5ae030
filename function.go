package lambdafn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrNoSource is returned when no source recognizes an invocation payload.
var ErrNoSource = errors.New("no source matched invocation payload")

// Function is a Lambda entry point that accepts raw invocation payloads,
// detects their envelope with the registered sources and dispatches the
// records.
//
// Usage:
//  1. Create a Dispatcher with New
//  2. Wrap it with NewFunction, adding sources (SQSSource and SNSSource by default)
//  3. Pass fn.Invoke to lambda.Start
//
// Function is safe for concurrent use after configuration. Do not call
// AddSource after the first Invoke.
type Function[T any] struct {
	dispatcher *Dispatcher[T]
	inspector  Inspector
	sources    []Source
	logger     zerolog.Logger

	// Adaptive ordering: try last successful source first
	lastMatch atomic.Value // stores string
}

// NewFunction wraps d. When no sources are given the function accepts SQS
// and SNS payloads.
//
// Example:
//
//	d, err := lambdafn.New[OrderPlaced](reg, lambdafn.WithBatchResponse(true))
//	...
//	fn := lambdafn.NewFunction(d)
//	lambda.Start(fn.Invoke)
func NewFunction[T any](d *Dispatcher[T], sources ...Source) *Function[T] {
	if len(sources) == 0 {
		sources = []Source{SQSSource(), SNSSource()}
	}
	return &Function[T]{
		dispatcher: d,
		inspector:  JSONInspector(),
		sources:    sources,
		logger:     d.opts.logger,
	}
}

// AddSource registers an additional source. Sources are tried in
// registration order.
func (f *Function[T]) AddSource(s Source) {
	f.sources = append(f.sources, s)
}

// Invoke decodes raw, dispatches its records and returns the value the
// platform expects: an events.SQSEventResponse for sources supporting batch
// responses when batch response mode is enabled, nil otherwise.
//
// A batch response for a source that cannot report partial failures is
// turned into an error naming the failed records, so the platform retries
// the invocation instead of silently dropping them.
func (f *Function[T]) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	view, err := f.inspector.Inspect(raw)
	if err != nil {
		return nil, err
	}

	if view.Len("Records") == 0 {
		f.logger.Debug().Msg("empty batch")
		return f.emptyResponse(), nil
	}

	source := f.match(view)
	if source == nil {
		return nil, ErrNoSource
	}

	records, err := source.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse failed for source %s: %w", source.Name(), err)
	}

	f.logger.Debug().
		Str("source", source.Name()).
		Int("records", len(records)).
		Msg("invocation received")

	resp, err := f.dispatcher.Dispatch(ctx, records)
	if err != nil {
		return nil, err
	}

	if !f.dispatcher.BatchResponse() {
		return nil, nil
	}
	if !source.BatchResponse() {
		if resp.Empty() {
			return nil, nil
		}
		return nil, fmt.Errorf("%d records failed on source %s %v: %w",
			len(resp.Failures), source.Name(), resp.IDs(), ErrBatchResponseUnsupported)
	}
	return resp.SQSEventResponse(), nil
}

func (f *Function[T]) emptyResponse() any {
	if f.dispatcher.BatchResponse() {
		return BatchResponse{Failures: []FailureEntry{}}.SQSEventResponse()
	}
	return nil
}

// match finds a source whose discriminator matches the payload.
// Uses adaptive ordering to try the last successful source first.
func (f *Function[T]) match(view View) Source {
	if v := f.lastMatch.Load(); v != nil {
		if name, ok := v.(string); ok && name != "" {
			for _, src := range f.sources {
				if src.Name() == name && src.Discriminator().Match(view) {
					return src
				}
			}
		}
	}

	for _, src := range f.sources {
		if src.Discriminator().Match(view) {
			f.lastMatch.Store(src.Name())
			return src
		}
	}
	return nil
}

// EventFunction runs a Proc[T] for single-event invocations. Each
// invocation gets its own scope, released after Run returns.
type EventFunction[T any] struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewEventFunction returns an EventFunction resolving Proc[T] from reg.
// It fails when no Proc[T] is registered.
func NewEventFunction[T any](reg *Registry, opts ...Option) (*EventFunction[T], error) {
	o, err := shellOptions(reg, opts)
	if err != nil {
		return nil, err
	}
	if !has[Proc[T]](reg) {
		return nil, &ResolutionError{Type: typeName[Proc[T]](), Err: ErrNoHandler}
	}
	return &EventFunction[T]{registry: reg, logger: o.logger}, nil
}

// Handle is the Lambda handler; pass it to lambda.Start.
func (f *EventFunction[T]) Handle(ctx context.Context, input T) error {
	return inScope(ctx, f.logger, func(ctx context.Context, s *Scope) error {
		res := resolve[Proc[T]](ctx, f.registry, s)
		if res.Status != Found {
			err := res.Err()
			f.logger.Error().Err(err).Msg("no proc could be resolved")
			return err
		}
		f.logger.Info().Msg("invoking handler")
		return res.Value.Run(ctx, input)
	})
}

// RequestResponseFunction runs a Func[T, R] for request/response
// invocations.
type RequestResponseFunction[T, R any] struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewRequestResponseFunction returns a RequestResponseFunction resolving
// Func[T, R] from reg. It fails when no Func[T, R] is registered.
func NewRequestResponseFunction[T, R any](reg *Registry, opts ...Option) (*RequestResponseFunction[T, R], error) {
	o, err := shellOptions(reg, opts)
	if err != nil {
		return nil, err
	}
	if !has[Func[T, R]](reg) {
		return nil, &ResolutionError{Type: typeName[Func[T, R]](), Err: ErrNoHandler}
	}
	return &RequestResponseFunction[T, R]{registry: reg, logger: o.logger}, nil
}

// Handle is the Lambda handler; pass it to lambda.Start.
func (f *RequestResponseFunction[T, R]) Handle(ctx context.Context, input T) (R, error) {
	var out R
	err := inScope(ctx, f.logger, func(ctx context.Context, s *Scope) error {
		res := resolve[Func[T, R]](ctx, f.registry, s)
		if res.Status != Found {
			err := res.Err()
			f.logger.Error().Err(err).Msg("no func could be resolved")
			return err
		}
		f.logger.Info().Msg("invoking handler")

		var err error
		out, err = res.Value.Call(ctx, input)
		return err
	})
	return out, err
}

func shellOptions(reg *Registry, opts []Option) (options, error) {
	if reg == nil {
		return options{}, ErrNilRegistry
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o, o.validate()
}

// inScope runs fn in a fresh scope and releases the scope after fn returns.
func inScope(ctx context.Context, logger zerolog.Logger, fn func(context.Context, *Scope) error) error {
	s := NewScope()
	ctx = invocationLogger(ctx, logger).Str("scope_id", s.ID()).Logger().WithContext(withScope(ctx, s))
	defer func() {
		if err := s.Release(ctx); err != nil {
			logger.Warn().Err(err).Str("scope_id", s.ID()).Msg("release scope")
		}
	}()
	return fn(ctx, s)
}
