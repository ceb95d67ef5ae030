package lambdafn

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// OnDispatchFunc is called after the record's scope is acquired, just before
// its body is deserialized.
type OnDispatchFunc func(ctx context.Context, rec Record)

// OnSuccessFunc is called after the handler completes successfully.
type OnSuccessFunc func(ctx context.Context, rec Record, duration time.Duration)

// OnFailureFunc is called after a record fails. err is a deserialization,
// handler or panic error.
type OnFailureFunc func(ctx context.Context, rec Record, err error, duration time.Duration)

// OnReleaseFunc is called after the record's scope is released. err holds
// the joined closer errors, or nil.
type OnReleaseFunc func(ctx context.Context, rec Record, err error)

// OnCompleteFunc is called once per batch after every record has been
// processed. err is the error Dispatch returns.
type OnCompleteFunc func(ctx context.Context, size int, resp BatchResponse, err error)

// hooks holds all configured hook functions.
type hooks struct {
	onDispatch []OnDispatchFunc
	onSuccess  []OnSuccessFunc
	onFailure  []OnFailureFunc
	onRelease  []OnReleaseFunc
	onComplete []OnCompleteFunc
}

// WithOnDispatch adds a hook called before each record is handled.
// Multiple hooks are called in order.
//
// In parallel mode hooks run concurrently from several workers and must be
// safe for concurrent use.
//
// Example:
//
//	lambdafn.WithOnDispatch(func(ctx context.Context, rec lambdafn.Record) {
//	    logger.Debug().Str("id", rec.ID).Msg("dispatching record")
//	})
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(o *options) {
		o.hooks.onDispatch = append(o.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after a handler succeeds.
// Multiple hooks are called in order.
//
// Example:
//
//	lambdafn.WithOnSuccess(func(ctx context.Context, rec lambdafn.Record, d time.Duration) {
//	    metrics.Timing("record.success", d)
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(o *options) {
		o.hooks.onSuccess = append(o.hooks.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called after a record fails.
// Multiple hooks are called in order.
//
// Example:
//
//	lambdafn.WithOnFailure(func(ctx context.Context, rec lambdafn.Record, err error, d time.Duration) {
//	    metrics.Incr("record.failure")
//	})
func WithOnFailure(fn OnFailureFunc) Option {
	return func(o *options) {
		o.hooks.onFailure = append(o.hooks.onFailure, fn)
	}
}

// WithOnRelease adds a hook called after a record's scope is released.
func WithOnRelease(fn OnReleaseFunc) Option {
	return func(o *options) {
		o.hooks.onRelease = append(o.hooks.onRelease, fn)
	}
}

// WithOnComplete adds a hook called once per dispatched batch.
func WithOnComplete(fn OnCompleteFunc) Option {
	return func(o *options) {
		o.hooks.onComplete = append(o.hooks.onComplete, fn)
	}
}

func (h *hooks) dispatch(ctx context.Context, rec Record) {
	for _, fn := range h.onDispatch {
		callHook(ctx, "dispatch", func() { fn(ctx, rec) })
	}
}

func (h *hooks) success(ctx context.Context, rec Record, d time.Duration) {
	for _, fn := range h.onSuccess {
		callHook(ctx, "success", func() { fn(ctx, rec, d) })
	}
}

func (h *hooks) failure(ctx context.Context, rec Record, err error, d time.Duration) {
	for _, fn := range h.onFailure {
		callHook(ctx, "failure", func() { fn(ctx, rec, err, d) })
	}
}

func (h *hooks) release(ctx context.Context, rec Record, err error) {
	for _, fn := range h.onRelease {
		callHook(ctx, "release", func() { fn(ctx, rec, err) })
	}
}

func (h *hooks) complete(ctx context.Context, size int, resp BatchResponse, err error) {
	for _, fn := range h.onComplete {
		callHook(ctx, "complete", func() { fn(ctx, size, resp, err) })
	}
}

// callHook runs one hook. A panicking hook is logged and the batch goes on.
func callHook(ctx context.Context, name string, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			zerolog.Ctx(ctx).Error().
				Str("hook", name).
				Interface("panic", v).
				Msg("hook panicked")
		}
	}()
	fn()
}
