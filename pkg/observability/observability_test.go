package observability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, DefaultServiceName, cfg.Tracing.ServiceName)
	assert.Equal(t, ExporterOTLP, cfg.Tracing.Exporter)
	assert.Equal(t, DefaultOTLPEndpoint, cfg.Tracing.Endpoint)
	assert.Equal(t, 1.0, cfg.Tracing.SamplingRate)
	assert.True(t, cfg.Tracing.IsInsecure())
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Endpoint)
	assert.Equal(t, "textserver", cfg.Metrics.Namespace)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "zipkin"
		}, "invalid exporter"},
		{"bad sampling", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SamplingRate = 2
		}, "sampling_rate"},
		{"relative metrics path", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Endpoint = "metrics"
		}, "absolute path"},
		{"disabled skips checks", func(c *Config) {
			c.Tracing.Exporter = "zipkin"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.SetDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	ctx := context.Background()
	var m *OTelMetrics

	m.RecordInference(ctx, "chat", time.Millisecond, nil)
	m.RecordLLMCall(ctx, "llama3.2", time.Millisecond, 10, 5, errors.New("boom"))
	m.RecordToolExecution(ctx, "calculator", time.Millisecond, nil)
	m.RecordRetrieval(ctx, "docs", time.Millisecond, 3, nil)
	m.RecordHTTPRequest(ctx, http.MethodGet, "/health", 200, time.Millisecond)

	assert.IsType(t, NoopMetrics{}, OrNoop(nil))
}

func TestManager_Disabled(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	m := NewManager(cfg)
	require.NoError(t, m.Initialize(context.Background()))

	assert.IsType(t, NoopMetrics{}, m.Metrics())
	assert.Nil(t, m.MetricsHandler())

	_, span := m.Tracer().Start(context.Background(), "test")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_MetricsExposed(t *testing.T) {
	var cfg Config
	cfg.Metrics.Enabled = true
	cfg.SetDefaults()

	m := NewManager(cfg)
	require.NoError(t, m.Initialize(context.Background()))
	defer m.Shutdown(context.Background())

	ctx := context.Background()
	m.Metrics().RecordInference(ctx, "instruct", 20*time.Millisecond, nil)
	m.Metrics().RecordToolExecution(ctx, "calculator", time.Millisecond, errors.New("bad"))

	handler := m.MetricsHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "textserver_inference_requests_total")
	assert.Contains(t, body, `mode="instruct"`)
	assert.Contains(t, body, "textserver_tool_errors_total")
}

func TestManager_StdoutTracing(t *testing.T) {
	var buf bytes.Buffer
	var cfg Config
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = ExporterStdout
	cfg.SetDefaults()

	m := NewManager(cfg, WithTraceWriter(&buf))
	require.NoError(t, m.Initialize(context.Background()))

	_, span := m.Tracer().Start(context.Background(), SpanInference)
	assert.True(t, span.SpanContext().IsValid())
	EndSpan(span, errors.New("failed"))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), SpanInference)
}

type recordingMetrics struct {
	NoopMetrics
	method, path string
	status       int
}

func (r *recordingMetrics) RecordHTTPRequest(_ context.Context, method, path string, status int, _ time.Duration) {
	r.method, r.path, r.status = method, path, status
}

func TestHTTPMiddleware_RecordsRoutePattern(t *testing.T) {
	rec := &recordingMetrics{}

	router := chi.NewRouter()
	router.Use(HTTPMiddleware(nil, rec))
	router.Delete("/v1/memory/collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/memory/collections/docs", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/v1/memory/collections/{name}", rec.path)
	assert.Equal(t, http.StatusNotFound, rec.status)
}

func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	_, err := w.Write([]byte("event: GENERATING_TOKENS\n"))
	require.NoError(t, err)
	w.Flush()

	assert.True(t, rec.Flushed)
	assert.Equal(t, http.StatusOK, w.statusCode)
}
