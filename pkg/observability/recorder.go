package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records gateway measurements. Every method tolerates a nil
// receiver on the concrete types.
type Metrics interface {
	RecordInference(ctx context.Context, mode string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordRetrieval(ctx context.Context, collection string, duration time.Duration, hits int, err error)
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
}

// OTelMetrics records through OpenTelemetry instruments.
type OTelMetrics struct {
	inferenceDuration metric.Float64Histogram
	inferenceTotal    metric.Int64Counter
	inferenceErrors   metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrors       metric.Int64Counter

	toolDuration metric.Float64Histogram
	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter

	retrievalDuration metric.Float64Histogram
	retrievalHits     metric.Int64Counter

	httpDuration metric.Float64Histogram
	httpRequests metric.Int64Counter
}

func (m *OTelMetrics) RecordInference(ctx context.Context, mode string, duration time.Duration, err error) {
	if m == nil || m.inferenceDuration == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.inferenceDuration.Record(ctx, duration.Seconds(), attrs)
	m.inferenceTotal.Add(ctx, 1, attrs)
	if err != nil {
		m.inferenceErrors.Add(ctx, 1, attrs)
	}
}

func (m *OTelMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	if inputTokens > 0 {
		m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	}
	if outputTokens > 0 {
		m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	}
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

func (m *OTelMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCalls.Add(ctx, 1, attrs)
	if err != nil {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

func (m *OTelMetrics) RecordRetrieval(ctx context.Context, collection string, duration time.Duration, hits int, err error) {
	if m == nil || m.retrievalDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("collection", collection),
		attribute.Bool("error", err != nil),
	)
	m.retrievalDuration.Record(ctx, duration.Seconds(), attrs)
	if hits > 0 {
		m.retrievalHits.Add(ctx, int64(hits), attrs)
	}
}

func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
	m.httpRequests.Add(ctx, 1, attrs)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordInference(context.Context, string, time.Duration, error) {}
func (NoopMetrics) RecordLLMCall(context.Context, string, time.Duration, int, int, error) {
}
func (NoopMetrics) RecordToolExecution(context.Context, string, time.Duration, error) {}
func (NoopMetrics) RecordRetrieval(context.Context, string, time.Duration, int, error) {}
func (NoopMetrics) RecordHTTPRequest(context.Context, string, string, int, time.Duration) {
}

var (
	_ Metrics = (*OTelMetrics)(nil)
	_ Metrics = NoopMetrics{}
)

// OrNoop returns m, or NoopMetrics when m is nil.
func OrNoop(m Metrics) Metrics {
	if m == nil {
		return NoopMetrics{}
	}
	return m
}
