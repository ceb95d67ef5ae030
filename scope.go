package lambdafn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Scope is an isolated resolution context bound to the processing of one
// record. It owns the closers of every scoped dependency created while the
// record is handled.
//
// Scopes are created and released by the dispatcher. A Scope is used by one
// goroutine at a time but its methods are safe for concurrent use, so a
// handler may fan out internally.
type Scope struct {
	id string

	mu       sync.Mutex
	closers  []func(context.Context) error
	values   map[string]any
	released bool
}

// NewScope creates an empty scope with a random id.
func NewScope() *Scope {
	return &Scope{
		id:     uuid.NewString(),
		values: make(map[string]any),
	}
}

// ID returns the scope identifier. Useful for correlating log lines of one
// record.
func (s *Scope) ID() string { return s.id }

// OnRelease registers fn to run when the scope is released. Closers run in
// reverse registration order.
//
// Registering on a released scope runs fn immediately and returns its
// error; otherwise OnRelease returns nil.
func (s *Scope) OnRelease(fn func(ctx context.Context) error) error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return runCloser(context.Background(), fn)
	}
	s.closers = append(s.closers, fn)
	s.mu.Unlock()
	return nil
}

// Release runs every registered closer in reverse order and returns their
// errors joined. A panicking closer is reported as a *PanicError
// and does not stop the others. Only the first call has any effect.
func (s *Scope) Release(ctx context.Context) error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	closers := s.closers
	s.closers = nil
	s.values = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := runCloser(ctx, closers[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runCloser calls fn, turning a panic into a *PanicError so the remaining
// closers still run.
func runCloser(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	return fn(ctx)
}

// Released reports whether Release has been called.
func (s *Scope) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// ScopedValue returns the value stored under key in s, building it with build
// on first use. Use it for dependencies that must be shared by everything
// resolved within one record but never across records, such as a database
// transaction.
//
// Example:
//
//	tx, err := lambdafn.ScopedValue(ctx, s, "tx", func(ctx context.Context, s *lambdafn.Scope) (*sql.Tx, error) {
//	    tx, err := db.BeginTx(ctx, nil)
//	    if err != nil {
//	        return nil, err
//	    }
//	    s.OnRelease(func(context.Context) error { return tx.Rollback() })
//	    return tx, nil
//	})
func ScopedValue[T any](ctx context.Context, s *Scope, key string, build func(context.Context, *Scope) (T, error)) (T, error) {
	var zero T

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return zero, fmt.Errorf("scope %s already released", s.id)
	}
	if v, ok := s.values[key]; ok {
		s.mu.Unlock()
		t, ok := v.(T)
		if !ok {
			return zero, fmt.Errorf("scoped value %q has type %T", key, v)
		}
		return t, nil
	}
	s.mu.Unlock()

	// build runs unlocked so it can register closers and resolve other
	// scoped values.
	v, err := build(ctx, s)
	if err != nil {
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.values[key]; ok {
		if t, ok := existing.(T); ok {
			return t, nil
		}
	}
	if s.values != nil {
		s.values[key] = v
	}
	return v, nil
}

type scopeKey struct{}

// ScopeFromContext returns the scope of the record being handled.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok
}

func withScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}
