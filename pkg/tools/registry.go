package tools

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dieharders/ai-text-server-sub000/pkg/observability"
)

// Registry resolves tool names against an ordered list of sources.
// Resolution is first-match-wins, so a prebuilt tool shadows a user tool
// with the same name.
type Registry struct {
	sources []Source
	tracer  trace.Tracer
	metrics observability.Metrics
}

type RegistryOption func(*Registry)

func WithTracer(tracer trace.Tracer) RegistryOption {
	return func(r *Registry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

func WithMetrics(metrics observability.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = observability.OrNoop(metrics)
	}
}

// NewRegistry builds a registry. Sources are searched in the given order;
// nil sources are skipped.
func NewRegistry(sources []Source, opts ...RegistryOption) *Registry {
	r := &Registry{
		tracer:  noop.NewTracerProvider().Tracer(""),
		metrics: observability.NoopMetrics{},
	}
	for _, src := range sources {
		if src != nil {
			r.sources = append(r.sources, src)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type loadErrorReporter interface {
	LoadError(name string) error
}

// Resolve returns the first tool named name. A source that found the name
// but could not load it ends the search with its load error.
func (r *Registry) Resolve(name string) (Tool, error) {
	for _, src := range r.sources {
		if t, ok := src.Lookup(name); ok {
			return t, nil
		}
		if reporter, ok := src.(loadErrorReporter); ok {
			if err := reporter.LoadError(name); err != nil {
				return nil, err
			}
		}
	}
	return nil, &NotFoundError{Name: name}
}

// Describe projects a tool for prompt building.
func (r *Registry) Describe(t Tool) Description {
	return Describe(t.Definition())
}

// Invoke calls the tool with args and returns its result unchanged.
// Handler failures are wrapped in ExecutionError. No timeout is imposed.
func (r *Registry) Invoke(ctx context.Context, t Tool, args map[string]any) (any, error) {
	name := t.Definition().Name
	ctx, span := r.tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(attribute.String(observability.AttrToolName, name)))

	start := time.Now()
	result, err := t.Invoke(ctx, args)
	if err != nil {
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			err = &ExecutionError{Name: name, Err: err}
		}
	}

	r.metrics.RecordToolExecution(ctx, name, time.Since(start), err)
	observability.EndSpan(span, err)
	return result, err
}

// List returns every resolvable tool. Shadowed tools are omitted.
func (r *Registry) List() []Tool {
	seen := make(map[string]bool)
	var out []Tool
	for _, src := range r.sources {
		for _, t := range src.List() {
			name := t.Definition().Name
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, t)
		}
	}
	return out
}
