package lambdafn

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records dispatch metrics in Prometheus. Install it with
// WithMetrics.
type Metrics struct {
	records  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	batches  prometheus.Counter
}

// NewMetrics creates the dispatch collectors under namespace and registers
// them with reg. Collectors already registered with identical options are
// reused, so several dispatchers may share one registry.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "records_total",
		Help:      "Records processed, by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "record_duration_seconds",
		Help:      "Time spent deserializing, resolving and handling one record.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "records_in_flight",
		Help:      "Records between scope acquire and release.",
	})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "batches_total",
		Help:      "Batches dispatched.",
	})

	m := &Metrics{}
	var err error
	if m.records, err = registerOrExisting(reg, records); err != nil {
		return nil, err
	}
	if m.duration, err = registerOrExisting(reg, duration); err != nil {
		return nil, err
	}
	if m.inFlight, err = registerOrExisting[prometheus.Gauge](reg, inFlight); err != nil {
		return nil, err
	}
	if m.batches, err = registerOrExisting[prometheus.Counter](reg, batches); err != nil {
		return nil, err
	}
	return m, nil
}

func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// WithMetrics records per-record outcomes, durations, in-flight records and
// batch counts in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.hooks.onDispatch = append(o.hooks.onDispatch, func(context.Context, Record) {
			m.inFlight.Inc()
		})
		o.hooks.onRelease = append(o.hooks.onRelease, func(context.Context, Record, error) {
			m.inFlight.Dec()
		})
		o.hooks.onSuccess = append(o.hooks.onSuccess, func(_ context.Context, _ Record, d time.Duration) {
			m.records.WithLabelValues("success").Inc()
			m.duration.WithLabelValues("success").Observe(d.Seconds())
		})
		o.hooks.onFailure = append(o.hooks.onFailure, func(_ context.Context, _ Record, _ error, d time.Duration) {
			m.records.WithLabelValues("failure").Inc()
			m.duration.WithLabelValues("failure").Observe(d.Seconds())
		})
		o.hooks.onComplete = append(o.hooks.onComplete, func(context.Context, int, BatchResponse, error) {
			m.batches.Inc()
		})
	}
}
