package lambdafn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
)

// Lifetime controls how long a resolved handler instance lives.
type Lifetime int

const (
	// Transient builds a new instance on every resolution.
	Transient Lifetime = iota
	// Scoped builds at most one instance per Scope.
	Scoped
	// Shared builds one instance for the life of the Registry. Shared
	// instances live above every scope and may be used concurrently. A
	// failed build is retried on the next resolution.
	Shared
)

func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "transient"
	case Scoped:
		return "scoped"
	case Shared:
		return "shared"
	default:
		return fmt.Sprintf("Lifetime(%d)", int(l))
	}
}

// Factory builds a handler inside a scope. Factories may register closers
// for the dependencies they create with s.OnRelease.
type Factory[T any] func(ctx context.Context, s *Scope) (Handler[T], error)

// Closer is implemented by handlers that hold per-record resources.
// Transient and scoped handlers implementing Closer (or io.Closer) are
// closed when their scope is released. Shared handlers are closed by
// Registry.Close.
type Closer interface {
	Close(ctx context.Context) error
}

// Registry maps message types to handler factories. It is populated at
// startup and read-only afterwards.
//
// This is a package-level API (RegisterHandler, Resolve) rather than methods
// because methods cannot have type parameters.
type Registry struct {
	mu      sync.RWMutex
	entries map[reflect.Type]*entry

	// scope owns the closers of shared instances.
	scope *Scope
}

type entry struct {
	lifetime Lifetime
	build    func(ctx context.Context, s *Scope) (any, error)

	mu     sync.Mutex
	built  bool
	shared any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[reflect.Type]*entry),
		scope:   NewScope(),
	}
}

// Close releases the registry scope: closers registered by shared
// factories run and shared instances implementing Closer or io.Closer are
// closed. Call it when the function shuts down. Shared resolutions after
// Close fail.
func (r *Registry) Close(ctx context.Context) error {
	return r.scope.Release(ctx)
}

// RegisterHandler registers the factory used to resolve Handler[T]. A later
// registration for the same T replaces the earlier one.
//
// Example:
//
//	reg := lambdafn.NewRegistry()
//	lambdafn.RegisterHandler(reg, func(ctx context.Context, s *lambdafn.Scope) (lambdafn.Handler[OrderPlaced], error) {
//	    return &OrderPlacedHandler{db: db}, nil
//	}, lambdafn.Transient)
func RegisterHandler[T any](r *Registry, f Factory[T], lifetime Lifetime) {
	register[Handler[T]](r, lifetime, func(ctx context.Context, s *Scope) (any, error) {
		return f(ctx, s)
	})
}

// RegisterInstance registers h as the shared Handler[T].
func RegisterInstance[T any](r *Registry, h Handler[T]) {
	RegisterHandler(r, func(context.Context, *Scope) (Handler[T], error) { return h, nil }, Shared)
}

// RegisterProc registers the factory used to resolve Proc[T] for
// EventFunction.
func RegisterProc[T any](r *Registry, f func(ctx context.Context, s *Scope) (Proc[T], error), lifetime Lifetime) {
	register[Proc[T]](r, lifetime, func(ctx context.Context, s *Scope) (any, error) {
		return f(ctx, s)
	})
}

// RegisterFunc registers the factory used to resolve Func[T, R] for
// RequestResponseFunction.
func RegisterFunc[T, R any](r *Registry, f func(ctx context.Context, s *Scope) (Func[T, R], error), lifetime Lifetime) {
	register[Func[T, R]](r, lifetime, func(ctx context.Context, s *Scope) (any, error) {
		return f(ctx, s)
	})
}

func register[K any](r *Registry, lifetime Lifetime, build func(context.Context, *Scope) (any, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[reflect.TypeFor[K]()] = &entry{lifetime: lifetime, build: build}
}

// Has reports whether a Handler[T] is registered.
func Has[T any](r *Registry) bool {
	return has[Handler[T]](r)
}

func has[K any](r *Registry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[reflect.TypeFor[K]()]
	return ok
}

// ResolutionStatus tags the outcome of Resolve.
type ResolutionStatus int

const (
	// Found means the value was resolved.
	Found ResolutionStatus = iota
	// NotFound means nothing is registered for the type.
	NotFound
	// Failed means a factory returned an error.
	Failed
)

// Resolution is the tagged result of resolving a value from a Registry.
type Resolution[V any] struct {
	Status ResolutionStatus
	Value  V
	Cause  error
}

// Err returns nil when the value was found, or a *ResolutionError.
func (r Resolution[V]) Err() error {
	switch r.Status {
	case Found:
		return nil
	case NotFound:
		return &ResolutionError{Type: typeName[V](), Err: ErrNoHandler}
	default:
		return &ResolutionError{Type: typeName[V](), Err: r.Cause}
	}
}

// Resolve resolves Handler[T] within s.
func Resolve[T any](ctx context.Context, r *Registry, s *Scope) Resolution[Handler[T]] {
	return resolve[Handler[T]](ctx, r, s)
}

func resolve[V any](ctx context.Context, r *Registry, s *Scope) Resolution[V] {
	key := reflect.TypeFor[V]()

	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return Resolution[V]{Status: NotFound}
	}

	var (
		v   any
		err error
	)
	switch e.lifetime {
	case Shared:
		v, err = r.buildShared(e)
	case Scoped:
		v, err = ScopedValue(ctx, s, "lambdafn.handler:"+key.String(), func(ctx context.Context, s *Scope) (any, error) {
			return buildOwned(ctx, e, s)
		})
	default:
		v, err = buildOwned(ctx, e, s)
	}
	if err != nil {
		return Resolution[V]{Status: Failed, Cause: err}
	}

	h, ok := v.(V)
	if !ok {
		return Resolution[V]{Status: Failed, Cause: fmt.Errorf("factory returned %T", v)}
	}
	return Resolution[V]{Status: Found, Value: h}
}

// buildShared builds the shared instance of e once. Only a successful build
// is kept. The factory runs in the registry scope with a context carrying no
// record.
func (r *Registry) buildShared(e *entry) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.built {
		return e.shared, nil
	}
	if r.scope.Released() {
		return nil, errRegistryClosed
	}

	ctx := withScope(context.Background(), r.scope)
	v, err := buildOwned(ctx, e, r.scope)
	if err != nil {
		return nil, err
	}
	e.shared, e.built = v, true
	return v, nil
}

var errRegistryClosed = errors.New("registry closed")

// buildOwned builds a value whose lifetime is bound to s. A panicking
// factory is reported as a *PanicError.
func buildOwned(ctx context.Context, e *entry, s *Scope) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			v, err = nil, &PanicError{Value: p}
		}
	}()

	v, err = e.build(ctx, s)
	if err != nil {
		return nil, err
	}
	switch c := v.(type) {
	case Closer:
		err = s.OnRelease(c.Close)
	case io.Closer:
		err = s.OnRelease(func(context.Context) error { return c.Close() })
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func typeName[V any]() string {
	return reflect.TypeFor[V]().String()
}
