// Package otel exports traces of HTTP requests, GraphQL operations and
// service calls to an OTLP collector.
package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanpama/contractgraph/internal/eventbus"
	"github.com/hanpama/contractgraph/internal/events"
	"github.com/hanpama/contractgraph/internal/reqid"
)

// Setup installs an OTLP/gRPC trace exporter for endpoint and starts turning
// bus events into spans. An empty endpoint disables tracing. The returned
// function flushes pending spans and detaches from the bus.
func Setup(ctx context.Context, endpoint, service string) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(service))),
	)
	otel.SetTracerProvider(tp)

	detach := newRecorder(otel.Tracer("contractgraph")).attach()
	return func(ctx context.Context) error {
		detach()
		return tp.Shutdown(ctx)
	}, nil
}

type layer int

const (
	layerRequest layer = iota
	layerOperation
)

type spanKey struct {
	request string
	layer   layer
}

// recorder keeps the open request and operation spans of every in-flight
// request, keyed by request id.
type recorder struct {
	tracer trace.Tracer

	mu   sync.Mutex
	open map[spanKey]trace.Span
}

func newRecorder(tracer trace.Tracer) *recorder {
	return &recorder{tracer: tracer, open: map[spanKey]trace.Span{}}
}

func (r *recorder) start(ctx context.Context, l layer, name string, attrs ...attribute.KeyValue) {
	rid, _ := reqid.FromContext(ctx)
	_, span := r.tracer.Start(r.parent(ctx), name, trace.WithAttributes(attrs...))
	r.mu.Lock()
	r.open[spanKey{rid, l}] = span
	r.mu.Unlock()
}

func (r *recorder) finish(ctx context.Context, l layer) trace.Span {
	rid, _ := reqid.FromContext(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	key := spanKey{rid, l}
	span, ok := r.open[key]
	if !ok {
		return nil
	}
	delete(r.open, key)
	return span
}

// parent returns ctx carrying the innermost open span of its request.
func (r *recorder) parent(ctx context.Context) context.Context {
	rid, _ := reqid.FromContext(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range []layer{layerOperation, layerRequest} {
		if span, ok := r.open[spanKey{rid, l}]; ok {
			return trace.ContextWithSpan(ctx, span)
		}
	}
	return ctx
}

func (r *recorder) attach() (detach func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.RequestStart) {
			rid, _ := reqid.FromContext(ctx)
			r.start(ctx, layerRequest, "http.request",
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
				attribute.String("http.request_id", rid),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.RequestFinish) {
			if span := r.finish(ctx, layerRequest); span != nil {
				span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
				if e.Status >= 500 {
					span.SetStatus(codes.Error, "")
				}
				span.End()
			}
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.OperationStart) {
			r.start(ctx, layerOperation, "graphql.operation",
				attribute.String("graphql.operation.name", e.Name),
				attribute.String("graphql.operation.type", e.Type),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.OperationFinish) {
			if span := r.finish(ctx, layerOperation); span != nil {
				span.SetAttributes(attribute.Int("graphql.error_count", e.Errors))
				span.End()
			}
		}),

		// Calls within one wave run concurrently, so each span is recorded
		// whole once its call returns.
		eventbus.Subscribe(func(ctx context.Context, e events.ServiceCallFinish) {
			end := time.Now()
			_, span := r.tracer.Start(r.parent(ctx), "service.call",
				trace.WithTimestamp(end.Add(-e.Duration)),
				trace.WithAttributes(
					semconv.RPCServiceKey.String(e.Service),
					semconv.RPCMethodKey.String(e.Method),
				),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End(trace.WithTimestamp(end))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.AuthDecision) {
			trace.SpanFromContext(r.parent(ctx)).AddEvent("auth.decision", trace.WithAttributes(
				attribute.String("graphql.field", e.ObjectType+"."+e.Field),
				attribute.Bool("auth.allowed", e.Allowed),
			))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
