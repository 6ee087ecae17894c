// Package metrics instruments an engine with Prometheus counters and latency
// histograms, labelled by collection, operation and result.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/conduit-lang/docmap/internal/engine"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds the collectors shared by every wrapped collection.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docmap",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by collection, operation and result.",
		}, []string{"collection", "operation", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docmap",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection", "operation"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Operations, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register engine metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(collection, op string, start time.Time, err error) {
	result := ResultOK
	switch {
	case errors.Is(err, engine.ErrNotFound):
		result = ResultNotFound
	case err != nil:
		result = ResultError
	}
	m.Operations.WithLabelValues(collection, op, result).Inc()
	m.Duration.WithLabelValues(collection, op).Observe(time.Since(start).Seconds())
}

// Engine wraps another engine and records every collection operation.
type Engine struct {
	inner   engine.Engine
	metrics *Metrics
}

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Admin  = (*Engine)(nil)
)

// Wrap instruments inner.
func Wrap(inner engine.Engine, m *Metrics) *Engine {
	return &Engine{inner: inner, metrics: m}
}

// Unwrap returns the instrumented engine.
func (e *Engine) Unwrap() engine.Engine {
	return e.inner
}

func (e *Engine) Connect(ctx context.Context) error {
	return e.inner.Connect(ctx)
}

func (e *Engine) Disconnect(ctx context.Context) error {
	return e.inner.Disconnect(ctx)
}

func (e *Engine) Collection(spec engine.CollectionSpec) (engine.Collection, error) {
	c, err := e.inner.Collection(spec)
	if err != nil {
		return nil, err
	}
	return &Collection{inner: c, metrics: e.metrics}, nil
}

func (e *Engine) Stats(ctx context.Context) (engine.Record, error) {
	admin, ok := e.inner.(engine.Admin)
	if !ok {
		return nil, fmt.Errorf("%w: stats", engine.ErrUnsupported)
	}
	return admin.Stats(ctx)
}

func (e *Engine) DropDatabase(ctx context.Context) error {
	admin, ok := e.inner.(engine.Admin)
	if !ok {
		return fmt.Errorf("%w: drop database", engine.ErrUnsupported)
	}
	return admin.DropDatabase(ctx)
}
