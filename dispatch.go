package lambdafn

import (
	"context"
)

// Handler processes one typed message taken from a batch record.
//
// The type parameter T is the message type. The dispatcher deserializes the
// record body into T, validates it if T implements Validate() error, and then
// calls Handle inside the record's scope.
//
// The ctx passed to Handle is the execution context: it carries the Lambda
// context (see lambdacontext.FromContext), the record's *Scope and the raw
// Record being handled.
//
// Example:
//
//	type OrderPlacedHandler struct {
//	    db *sql.DB
//	}
//
//	func (h *OrderPlacedHandler) Handle(ctx context.Context, m OrderPlaced) error {
//	    _, err := h.db.ExecContext(ctx, "INSERT INTO orders ...", m.OrderID)
//	    return err
//	}
type Handler[T any] interface {
	Handle(ctx context.Context, msg T) error
}

// HandlerFunc is a function adapter for Handler. Use for simple handlers
// that don't need a struct:
//
//	lambdafn.RegisterInstance[Ping](reg, lambdafn.HandlerFunc[Ping](func(ctx context.Context, p Ping) error {
//	    return nil
//	}))
type HandlerFunc[T any] func(ctx context.Context, msg T) error

// Handle implements the Handler interface.
func (f HandlerFunc[T]) Handle(ctx context.Context, msg T) error {
	return f(ctx, msg)
}

// Proc (procedure) processes a single invocation input without returning a
// result. It is the contract behind EventFunction.
type Proc[T any] interface {
	Run(ctx context.Context, input T) error
}

// ProcFunc is a function adapter for Proc.
type ProcFunc[T any] func(ctx context.Context, input T) error

// Run implements the Proc interface.
func (f ProcFunc[T]) Run(ctx context.Context, input T) error {
	return f(ctx, input)
}

// Func (function) processes a single invocation input and returns a typed
// result. It is the contract behind RequestResponseFunction.
//
// Example:
//
//	type LookupUserFunc struct {
//	    client IdentityClient
//	}
//
//	func (f *LookupUserFunc) Call(ctx context.Context, in LookupInput) (*LookupResult, error) {
//	    user, err := f.client.GetUser(ctx, in.UserID)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &LookupResult{Email: user.Email}, nil
//	}
type Func[T, R any] interface {
	Call(ctx context.Context, input T) (R, error)
}

// FuncFunc is a function adapter for Func.
type FuncFunc[T, R any] func(ctx context.Context, input T) (R, error)

// Call implements the Func interface.
func (f FuncFunc[T, R]) Call(ctx context.Context, input T) (R, error) {
	return f(ctx, input)
}

// Record is one raw unit of work delivered by the platform.
//
// Records are read-only. The dispatcher never mutates a record, including its
// Attributes map and Metadata.
type Record struct {
	// ID identifies the record within its batch. For SQS this is the
	// message id, which is also the item identifier reported on failure.
	ID string

	// Body is the raw payload handed to the Serializer.
	Body string

	// Attributes holds platform attributes such as ApproximateReceiveCount
	// or MessageGroupId. May be nil.
	Attributes map[string]string

	// Metadata is the platform-specific source record (for example an
	// events.SQSMessage or events.SNSEventRecord), carried opaquely.
	Metadata any
}

type recordKey struct{}

// RecordFromContext returns the record being handled by the current scope.
// Handlers use this to read the message id or platform attributes without
// receiving the raw record as an argument.
func RecordFromContext(ctx context.Context) (Record, bool) {
	rec, ok := ctx.Value(recordKey{}).(Record)
	return rec, ok
}

func withRecord(ctx context.Context, rec Record) context.Context {
	return context.WithValue(ctx, recordKey{}, rec)
}
