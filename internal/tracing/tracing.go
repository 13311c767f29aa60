// Package tracing wraps the OpenTelemetry API for engine spans.
//
// The engine only depends on the API. Without an SDK installed through
// otel.SetTracerProvider every span is a no-op.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies the engine's tracer.
const InstrumentationName = "typeproof/internal/provenance"

// Attribute keys shared by engine spans.
const (
	AttrDocumentID    = attribute.Key("typeproof.document_id")
	AttrEventCount    = attribute.Key("typeproof.event_count")
	AttrContentLength = attribute.Key("typeproof.content_length")
	AttrBatchSize     = attribute.Key("typeproof.batch_size")
	AttrCacheResult   = attribute.Key("typeproof.cache_result")
	AttrStatus        = attribute.Key("typeproof.status")
	AttrConfidence    = attribute.Key("typeproof.confidence")
)

// Tracer returns the engine tracer from tp, or from the global provider when
// tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName)
}

// Start opens an internal span with the given attributes.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = Tracer(nil)
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceID returns the hex trace ID of the span in ctx, or "" when ctx carries
// no valid span context.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Document returns the attributes identifying a verification input.
func Document(documentID string, events, contentLength int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrDocumentID.String(documentID),
		AttrEventCount.Int(events),
		AttrContentLength.Int(contentLength),
	}
}
