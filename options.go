package lambdafn

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mode selects the dispatch strategy.
type Mode int

const (
	// Sequential handles records one at a time in batch order.
	Sequential Mode = iota
	// Parallel handles up to the configured degree of parallelism records
	// concurrently.
	Parallel
)

func (m Mode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Parallel:
		return "parallel"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "sequential" or "parallel".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "sequential", "":
		return Sequential, nil
	case "parallel":
		return Parallel, nil
	default:
		return 0, fmt.Errorf("unknown dispatch mode %q", s)
	}
}

// Option configures a Dispatcher.
type Option func(*options)

type options struct {
	mode          Mode
	parallelism   int
	batchResponse bool
	serializer    Serializer
	logger        zerolog.Logger
	hooks         hooks
}

func defaultOptions() options {
	return options{
		mode:        Sequential,
		parallelism: runtime.NumCPU(),
		serializer:  JSONSerializer(),
		logger:      log.With().Str("pkg", "lambdafn").Logger(),
	}
}

// validate rejects configurations that can never dispatch a batch.
func (o *options) validate() error {
	if o.mode != Sequential && o.mode != Parallel {
		return fmt.Errorf("unknown dispatch mode %d", int(o.mode))
	}
	if o.mode == Parallel && o.parallelism <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidParallelism, o.parallelism)
	}
	if o.serializer == nil {
		return fmt.Errorf("serializer is required")
	}
	return nil
}

// WithMode sets the dispatch strategy. The default is Sequential.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithParallelism selects Parallel mode with at most n records in flight.
// n must be positive; New rejects anything else.
//
// Example:
//
//	d, err := lambdafn.New[OrderPlaced](reg, lambdafn.WithParallelism(8))
func WithParallelism(n int) Option {
	return func(o *options) {
		o.mode = Parallel
		o.parallelism = n
	}
}

// WithBatchResponse enables batch response mode: per-record failures are
// collected into the BatchResponse instead of being returned as errors.
func WithBatchResponse(enabled bool) Option {
	return func(o *options) {
		o.batchResponse = enabled
	}
}

// WithSerializer replaces the default JSON serializer.
func WithSerializer(s Serializer) Option {
	return func(o *options) {
		o.serializer = s
	}
}

// WithLogger sets the logger used for dispatch events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
