package lambdafn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// closingHandler implements Closer.
type closingHandler struct {
	closed int
}

func (h *closingHandler) Handle(context.Context, testMessage) error { return nil }
func (h *closingHandler) Close(context.Context) error {
	h.closed++
	return nil
}

// ioClosingHandler implements io.Closer.
type ioClosingHandler struct {
	closed bool
}

func (h *ioClosingHandler) Handle(context.Context, testMessage) error { return nil }
func (h *ioClosingHandler) Close() error {
	h.closed = true
	return nil
}

var (
	_ Handler[testMessage] = (*closingHandler)(nil)
	_ Closer               = (*closingHandler)(nil)
	_ Handler[testMessage] = (*ioClosingHandler)(nil)
)

type RegistrySuite struct {
	suite.Suite
	ctx context.Context
	reg *Registry
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.reg = NewRegistry()
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) registerCounting(lifetime Lifetime) *int {
	builds := new(int)
	RegisterHandler(s.reg, func(context.Context, *Scope) (Handler[testMessage], error) {
		*builds++
		return &closingHandler{}, nil
	}, lifetime)
	return builds
}

func (s *RegistrySuite) TestNotFound() {
	res := Resolve[testMessage](s.ctx, s.reg, NewScope())

	s.Assert().Equal(NotFound, res.Status)
	s.Assert().ErrorIs(res.Err(), ErrNoHandler)
	s.Assert().False(Has[testMessage](s.reg))
}

func (s *RegistrySuite) TestFactoryFailure() {
	boom := errors.New("boom")
	RegisterHandler(s.reg, func(context.Context, *Scope) (Handler[testMessage], error) {
		return nil, boom
	}, Transient)

	res := Resolve[testMessage](s.ctx, s.reg, NewScope())

	s.Assert().Equal(Failed, res.Status)
	s.Assert().ErrorIs(res.Err(), boom)
	var rerr *ResolutionError
	s.Require().ErrorAs(res.Err(), &rerr)
	s.Assert().Contains(rerr.Type, "testMessage")
}

func (s *RegistrySuite) TestNilHandlerIsAFailure() {
	RegisterHandler(s.reg, func(context.Context, *Scope) (Handler[testMessage], error) {
		return nil, nil
	}, Transient)

	res := Resolve[testMessage](s.ctx, s.reg, NewScope())

	s.Assert().Equal(Failed, res.Status)
}

func (s *RegistrySuite) TestTransientBuildsEveryTime() {
	builds := s.registerCounting(Transient)
	scope := NewScope()

	a := Resolve[testMessage](s.ctx, s.reg, scope)
	b := Resolve[testMessage](s.ctx, s.reg, scope)

	s.Require().Equal(Found, a.Status)
	s.Require().Equal(Found, b.Status)
	s.Assert().NotSame(a.Value, b.Value)
	s.Assert().Equal(2, *builds)
}

func (s *RegistrySuite) TestScopedBuildsOncePerScope() {
	builds := s.registerCounting(Scoped)
	first, second := NewScope(), NewScope()

	a := Resolve[testMessage](s.ctx, s.reg, first)
	b := Resolve[testMessage](s.ctx, s.reg, first)
	c := Resolve[testMessage](s.ctx, s.reg, second)

	s.Assert().Same(a.Value, b.Value)
	s.Assert().NotSame(a.Value, c.Value)
	s.Assert().Equal(2, *builds)
}

func (s *RegistrySuite) TestSharedBuildsOnce() {
	builds := s.registerCounting(Shared)

	a := Resolve[testMessage](s.ctx, s.reg, NewScope())
	b := Resolve[testMessage](s.ctx, s.reg, NewScope())

	s.Assert().Same(a.Value, b.Value)
	s.Assert().Equal(1, *builds)
}

func (s *RegistrySuite) TestOwnedHandlersClosedWithScope() {
	for _, lifetime := range []Lifetime{Transient, Scoped} {
		s.Run(lifetime.String(), func() {
			reg := NewRegistry()
			h := &closingHandler{}
			RegisterHandler(reg, func(context.Context, *Scope) (Handler[testMessage], error) {
				return h, nil
			}, lifetime)

			scope := NewScope()
			s.Require().Equal(Found, Resolve[testMessage](s.ctx, reg, scope).Status)
			s.Assert().Zero(h.closed)

			s.Require().NoError(scope.Release(s.ctx))
			s.Assert().Equal(1, h.closed)
		})
	}
}

func (s *RegistrySuite) TestIOCloserClosedWithScope() {
	h := &ioClosingHandler{}
	RegisterHandler(s.reg, func(context.Context, *Scope) (Handler[testMessage], error) {
		return h, nil
	}, Transient)

	scope := NewScope()
	Resolve[testMessage](s.ctx, s.reg, scope)
	s.Require().NoError(scope.Release(s.ctx))

	s.Assert().True(h.closed)
}

func (s *RegistrySuite) TestSharedHandlerNotClosedWithScope() {
	h := &closingHandler{}
	RegisterInstance[testMessage](s.reg, h)

	scope := NewScope()
	Resolve[testMessage](s.ctx, s.reg, scope)
	s.Require().NoError(scope.Release(s.ctx))

	s.Assert().Zero(h.closed)
}

func (s *RegistrySuite) TestLaterRegistrationWins() {
	first, second := &closingHandler{}, &closingHandler{}
	RegisterInstance[testMessage](s.reg, first)
	RegisterInstance[testMessage](s.reg, second)

	res := Resolve[testMessage](s.ctx, s.reg, NewScope())

	s.Assert().Same(second, res.Value)
}

func (s *RegistrySuite) TestProcAndFuncAreSeparateFromHandlers() {
	RegisterProc(s.reg, func(context.Context, *Scope) (Proc[testMessage], error) {
		return ProcFunc[testMessage](func(context.Context, testMessage) error { return nil }), nil
	}, Transient)

	s.Assert().False(Has[testMessage](s.reg))
	s.Assert().True(has[Proc[testMessage]](s.reg))
	s.Assert().False(has[Func[testMessage, string]](s.reg))
}

func (s *RegistrySuite) TestFactoryPanicIsAFailure() {
	RegisterHandler(s.reg, func(context.Context, *Scope) (Handler[testMessage], error) {
		panic("wiring bug")
	}, Transient)

	res := Resolve[testMessage](s.ctx, s.reg, NewScope())

	s.Assert().Equal(Failed, res.Status)
	var perr *PanicError
	s.Assert().ErrorAs(res.Err(), &perr)
	s.Assert().True(IsFatal(res.Err()))
}

func (s *RegistrySuite) TestSharedFailedBuildIsRetried() {
	attempts := 0
	h := &closingHandler{}
	RegisterHandler(s.reg, func(context.Context, *Scope) (Handler[testMessage], error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("dependency timed out")
		}
		return h, nil
	}, Shared)

	first := Resolve[testMessage](s.ctx, s.reg, NewScope())
	second := Resolve[testMessage](s.ctx, s.reg, NewScope())
	third := Resolve[testMessage](s.ctx, s.reg, NewScope())

	s.Assert().Equal(Failed, first.Status)
	s.Require().Equal(Found, second.Status)
	s.Assert().Same(h, second.Value)
	s.Assert().Same(h, third.Value)
	s.Assert().Equal(2, attempts)
}

func (s *RegistrySuite) TestSharedBuiltOutsideRecordScope() {
	var (
		sawRecord  bool
		buildScope *Scope
		released   bool
	)
	h := &closingHandler{}
	RegisterHandler(s.reg, func(ctx context.Context, sc *Scope) (Handler[testMessage], error) {
		_, sawRecord = RecordFromContext(ctx)
		buildScope, _ = ScopeFromContext(ctx)
		sc.OnRelease(func(context.Context) error {
			released = true
			return nil
		})
		return h, nil
	}, Shared)

	recordScope := NewScope()
	ctx := withRecord(withScope(s.ctx, recordScope), Record{ID: "r1"})
	s.Require().Equal(Found, Resolve[testMessage](ctx, s.reg, recordScope).Status)
	s.Require().NoError(recordScope.Release(s.ctx))

	s.Assert().False(sawRecord)
	s.Require().NotNil(buildScope)
	s.Assert().NotSame(recordScope, buildScope)
	s.Assert().False(released)
	s.Assert().Zero(h.closed)

	s.Require().NoError(s.reg.Close(s.ctx))
	s.Assert().True(released)
	s.Assert().Equal(1, h.closed)
}

func (s *RegistrySuite) TestSharedBuildAfterCloseFails() {
	s.registerCounting(Shared)
	s.Require().NoError(s.reg.Close(s.ctx))

	res := Resolve[testMessage](s.ctx, s.reg, NewScope())

	s.Assert().Equal(Failed, res.Status)
	s.Assert().True(IsFatal(res.Err()))
}
