package observability

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// metricsBundle is what initMetrics produces: the recorder, the scrape
// handler and the provider to shut down.
type metricsBundle struct {
	recorder *OTelMetrics
	handler  http.Handler
	provider *sdkmetric.MeterProvider
}

// initMetrics builds an OpenTelemetry meter exported through a private
// Prometheus registry.
func initMetrics(cfg MetricsConfig) (*metricsBundle, error) {
	if !cfg.Enabled {
		return &metricsBundle{}, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(
		prometheus.WithRegisterer(registry),
		prometheus.WithNamespace(cfg.Namespace),
		prometheus.WithoutScopeInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(instrumentationName)

	m := &OTelMetrics{}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"inference duration", func() (err error) {
			m.inferenceDuration, err = meter.Float64Histogram("inference_duration_seconds",
				metric.WithDescription("Inference request duration in seconds"), metric.WithUnit("s"))
			return
		}},
		{"inference requests", func() (err error) {
			m.inferenceTotal, err = meter.Int64Counter("inference_requests_total",
				metric.WithDescription("Total inference requests"))
			return
		}},
		{"inference errors", func() (err error) {
			m.inferenceErrors, err = meter.Int64Counter("inference_errors_total",
				metric.WithDescription("Total failed inference requests"))
			return
		}},
		{"llm duration", func() (err error) {
			m.llmDuration, err = meter.Float64Histogram("llm_request_duration_seconds",
				metric.WithDescription("Engine generate duration in seconds"), metric.WithUnit("s"))
			return
		}},
		{"llm input tokens", func() (err error) {
			m.llmInputTokens, err = meter.Int64Counter("llm_tokens_input_total",
				metric.WithDescription("Total prompt tokens sent to the engine"))
			return
		}},
		{"llm output tokens", func() (err error) {
			m.llmOutputTokens, err = meter.Int64Counter("llm_tokens_output_total",
				metric.WithDescription("Total tokens generated by the engine"))
			return
		}},
		{"llm errors", func() (err error) {
			m.llmErrors, err = meter.Int64Counter("llm_errors_total",
				metric.WithDescription("Total engine errors"))
			return
		}},
		{"tool duration", func() (err error) {
			m.toolDuration, err = meter.Float64Histogram("tool_execution_duration_seconds",
				metric.WithDescription("Tool execution duration in seconds"), metric.WithUnit("s"))
			return
		}},
		{"tool calls", func() (err error) {
			m.toolCalls, err = meter.Int64Counter("tool_calls_total",
				metric.WithDescription("Total tool invocations"))
			return
		}},
		{"tool errors", func() (err error) {
			m.toolErrors, err = meter.Int64Counter("tool_errors_total",
				metric.WithDescription("Total tool failures"))
			return
		}},
		{"retrieval duration", func() (err error) {
			m.retrievalDuration, err = meter.Float64Histogram("retrieval_duration_seconds",
				metric.WithDescription("Vector search duration in seconds"), metric.WithUnit("s"))
			return
		}},
		{"retrieval hits", func() (err error) {
			m.retrievalHits, err = meter.Int64Counter("retrieval_hits_total",
				metric.WithDescription("Total chunks returned by vector search"))
			return
		}},
		{"http duration", func() (err error) {
			m.httpDuration, err = meter.Float64Histogram("http_request_duration_seconds",
				metric.WithDescription("HTTP request duration in seconds"), metric.WithUnit("s"))
			return
		}},
		{"http requests", func() (err error) {
			m.httpRequests, err = meter.Int64Counter("http_requests_total",
				metric.WithDescription("Total HTTP requests"))
			return
		}},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			_ = provider.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to create %s instrument: %w", step.name, err)
		}
	}

	return &metricsBundle{
		recorder: m,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		provider: provider,
	}, nil
}
