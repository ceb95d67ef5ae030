package lambdafn

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_Release(t *testing.T) {
	t.Run("runs closers in reverse order", func(t *testing.T) {
		s := NewScope()
		var order []int
		for i := 1; i <= 3; i++ {
			s.OnRelease(func(context.Context) error {
				order = append(order, i)
				return nil
			})
		}

		require.NoError(t, s.Release(context.Background()))
		assert.Equal(t, []int{3, 2, 1}, order)
		assert.True(t, s.Released())
	})

	t.Run("runs every closer and joins errors", func(t *testing.T) {
		s := NewScope()
		errA, errB := errors.New("a"), errors.New("b")
		ran := 0
		s.OnRelease(func(context.Context) error { ran++; return errA })
		s.OnRelease(func(context.Context) error { ran++; return nil })
		s.OnRelease(func(context.Context) error { ran++; return errB })

		err := s.Release(context.Background())

		assert.Equal(t, 3, ran)
		assert.ErrorIs(t, err, errA)
		assert.ErrorIs(t, err, errB)
	})

	t.Run("second release is a no-op", func(t *testing.T) {
		s := NewScope()
		calls := 0
		s.OnRelease(func(context.Context) error { calls++; return nil })

		require.NoError(t, s.Release(context.Background()))
		require.NoError(t, s.Release(context.Background()))
		assert.Equal(t, 1, calls)
	})

	t.Run("closer registered after release runs immediately", func(t *testing.T) {
		s := NewScope()
		require.NoError(t, s.Release(context.Background()))

		ran := false
		err := s.OnRelease(func(context.Context) error { ran = true; return nil })
		assert.NoError(t, err)
		assert.True(t, ran)
	})

	t.Run("late closer error is returned", func(t *testing.T) {
		s := NewScope()
		require.NoError(t, s.Release(context.Background()))

		closeErr := errors.New("close failed")
		err := s.OnRelease(func(context.Context) error { return closeErr })
		assert.ErrorIs(t, err, closeErr)
	})

	t.Run("panicking closer does not stop earlier closers", func(t *testing.T) {
		s := NewScope()
		firstRan := false
		s.OnRelease(func(context.Context) error { firstRan = true; return nil })
		s.OnRelease(func(context.Context) error { panic("close exploded") })

		var err error
		require.NotPanics(t, func() { err = s.Release(context.Background()) })

		assert.True(t, firstRan)
		var perr *PanicError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "close exploded", perr.Value)
		assert.True(t, s.Released())
	})

	t.Run("scopes have distinct ids", func(t *testing.T) {
		assert.NotEqual(t, NewScope().ID(), NewScope().ID())
	})
}

func TestScopedValue(t *testing.T) {
	ctx := context.Background()

	t.Run("builds once per scope", func(t *testing.T) {
		s := NewScope()
		builds := 0
		build := func(context.Context, *Scope) (*int, error) {
			builds++
			v := builds
			return &v, nil
		}

		a, err := ScopedValue(ctx, s, "counter", build)
		require.NoError(t, err)
		b, err := ScopedValue(ctx, s, "counter", build)
		require.NoError(t, err)

		assert.Same(t, a, b)
		assert.Equal(t, 1, builds)

		other, err := ScopedValue(ctx, NewScope(), "counter", build)
		require.NoError(t, err)
		assert.NotSame(t, a, other)
	})

	t.Run("build error is not cached", func(t *testing.T) {
		s := NewScope()
		fail := true
		build := func(context.Context, *Scope) (string, error) {
			if fail {
				return "", errors.New("not yet")
			}
			return "ok", nil
		}

		_, err := ScopedValue(ctx, s, "k", build)
		require.Error(t, err)

		fail = false
		v, err := ScopedValue(ctx, s, "k", build)
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("type mismatch is an error", func(t *testing.T) {
		s := NewScope()
		_, err := ScopedValue(ctx, s, "k", func(context.Context, *Scope) (int, error) { return 1, nil })
		require.NoError(t, err)

		_, err = ScopedValue(ctx, s, "k", func(context.Context, *Scope) (string, error) { return "", nil })
		assert.Error(t, err)
	})

	t.Run("released scope refuses new values", func(t *testing.T) {
		s := NewScope()
		require.NoError(t, s.Release(ctx))

		_, err := ScopedValue(ctx, s, "k", func(context.Context, *Scope) (int, error) { return 1, nil })
		assert.Error(t, err)
	})

	t.Run("concurrent callers see one value", func(t *testing.T) {
		s := NewScope()
		var wg sync.WaitGroup
		results := make([]*int, 16)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := ScopedValue(ctx, s, "shared", func(context.Context, *Scope) (*int, error) {
					return new(int), nil
				})
				assert.NoError(t, err)
				results[i] = v
			}()
		}
		wg.Wait()

		for _, r := range results[1:] {
			assert.Same(t, results[0], r)
		}
	})
}
