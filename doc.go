// Package lambdafn provides the plumbing for serverless functions that
// process batches of queue messages or notifications.
//
// It dispatches each record of a batch (SQS messages, SNS notifications, or
// any custom envelope) to a typed handler, sequentially or with bounded
// parallelism, gives every record its own dependency scope, and reports
// which records failed so the platform redelivers only those.
//
// # Quick Start
//
// Define a handler for your message type:
//
//	type OrderPlaced struct {
//	    OrderID string `json:"order_id"`
//	}
//
//	type OrderPlacedHandler struct {
//	    orders OrderStore
//	}
//
//	func (h *OrderPlacedHandler) Handle(ctx context.Context, m OrderPlaced) error {
//	    return h.orders.Confirm(ctx, m.OrderID)
//	}
//
// Register it, create a dispatcher and start the function:
//
//	reg := lambdafn.NewRegistry()
//	lambdafn.RegisterHandler(reg, func(ctx context.Context, s *lambdafn.Scope) (lambdafn.Handler[OrderPlaced], error) {
//	    return &OrderPlacedHandler{orders: store}, nil
//	}, lambdafn.Transient)
//
//	d, err := lambdafn.New[OrderPlaced](reg, lambdafn.WithBatchResponse(true))
//	if err != nil {
//	    log.Fatal().Err(err).Msg("configure dispatcher")
//	}
//
//	lambda.Start(lambdafn.SQSFunction(d))
//
// # Dispatch Modes
//
// Sequential (the default) handles records one at a time in batch order.
// The next record starts only after the previous record's scope is released.
//
// Parallel, selected with WithParallelism, runs a fixed pool of workers.
// At most n records are in flight at any time; records handled by the same
// worker keep their batch order, records of different workers do not.
//
//	d, err := lambdafn.New[OrderPlaced](reg, lambdafn.WithParallelism(8))
//
// A non-positive degree of parallelism is rejected by New.
//
// # Batch Response Mode
//
// With WithBatchResponse(true), a record whose body cannot be decoded or
// whose handler returns an error (or panics) is recorded in the
// BatchResponse, and the other records are still processed. Dispatch does
// not return an error for such failures.
//
// Without it (fire-and-forget mode), the first failure is returned. The
// sequential dispatcher stops at that record. The parallel dispatcher stops
// handing out new records, lets records already in flight finish, and then
// returns the first error.
//
// A handler that cannot be resolved from the registry ends the invocation in
// both modes.
//
// # Scopes
//
// Each record is handled inside a Scope. Handlers registered as Transient or
// Scoped are built in that scope, and any that implement Closer or io.Closer
// are closed when the scope is released. Factories register closers for
// their own dependencies:
//
//	lambdafn.RegisterHandler(reg, func(ctx context.Context, s *lambdafn.Scope) (lambdafn.Handler[OrderPlaced], error) {
//	    conn, err := pool.Acquire(ctx)
//	    if err != nil {
//	        return nil, err
//	    }
//	    s.OnRelease(func(context.Context) error { conn.Release(); return nil })
//	    return &OrderPlacedHandler{conn: conn}, nil
//	}, lambdafn.Transient)
//
// A scope is released after the handler returns, on every path. A closer
// that panics is reported in the release error and the others still run.
//
// Shared handlers are built once and used concurrently by all workers; they
// must be safe for concurrent use. Their factories run in a registry scope,
// released by Registry.Close. A failed shared build is retried on the next
// record.
//
// # Execution Context
//
// The ctx passed to a handler carries everything about the current record:
//
//   - RecordFromContext: the raw record (id, body, attributes)
//   - SQSInfoFromContext: SQS message details such as the receive count
//   - ScopeFromContext: the record's scope
//   - zerolog.Ctx: a logger tagged with the record and scope ids
//   - lambdacontext.FromContext: the Lambda invocation context
//
// # Hooks and Metrics
//
// Hooks observe dispatch without coupling it to a logging or metrics system:
//
//	d, err := lambdafn.New[OrderPlaced](reg,
//	    lambdafn.WithOnFailure(func(ctx context.Context, rec lambdafn.Record, err error, d time.Duration) {
//	        alerts.Notify(ctx, rec.ID, err)
//	    }),
//	)
//
// NewMetrics and WithMetrics record outcomes, durations and in-flight
// records in Prometheus.
//
// # Envelope Detection
//
// Function accepts raw invocation payloads and picks the Source whose
// Discriminator matches, so one entry point can serve SQS and SNS triggers:
//
//	fn := lambdafn.NewFunction(d, lambdafn.SQSSource(), lambdafn.SNSSource())
//	lambda.Start(fn.Invoke)
//
// # Thread Safety
//
// Dispatcher and Function are safe for concurrent use after configuration.
// Do not register handlers or add sources after the first dispatch.
package lambdafn
