package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns the tracer and meter providers for the process.
type Manager struct {
	config Config
	stdout io.Writer

	mu             sync.RWMutex
	tracerProvider trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        Metrics
	handler        http.Handler
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTraceWriter sets where the stdout exporter writes.
func WithTraceWriter(w io.Writer) ManagerOption {
	return func(m *Manager) {
		m.stdout = w
	}
}

func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{config: cfg}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NoopManager is a Manager whose tracer and metrics do nothing.
func NoopManager() *Manager {
	return &Manager{}
}

// Initialize builds the providers. Disabled pieces fall back to no-ops.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := InitTracer(ctx, m.config.Tracing, m.stdout)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	bundle, err := initMetrics(m.config.Metrics)
	if err != nil {
		return err
	}
	if bundle.recorder != nil {
		m.metrics = bundle.recorder
		m.handler = bundle.handler
		m.meterProvider = bundle.provider
	}
	return nil
}

// Tracer returns a named tracer, or a noop tracer before Initialize.
func (m *Manager) Tracer() trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return m.tracerProvider.Tracer(instrumentationName)
}

// Metrics never returns nil.
func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return OrNoop(m.metrics)
}

// MetricsHandler serves the Prometheus scrape endpoint. It is nil when
// metrics are disabled.
func (m *Manager) MetricsHandler() http.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handler
}

// MetricsPath is where MetricsHandler should be mounted.
func (m *Manager) MetricsPath() string {
	if m.config.Metrics.Endpoint == "" {
		return DefaultMetricsPath
	}
	return m.config.Metrics.Endpoint
}

// Shutdown flushes and stops both providers.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if spt, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		errs = append(errs, spt.Shutdown(ctx))
	}
	if m.meterProvider != nil {
		errs = append(errs, m.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
