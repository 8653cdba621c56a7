package httpapi

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var apiTracer = otel.Tracer("prediction-settlement/internal/interfaces/httpapi")
var noopSpan = trace.SpanFromContext(context.Background())

var spannedPrefixes = []string{
	"httpapi.Handler.",
	"httpapi.RequireInternalJobToken",
}

// startSpan only opens child spans under a traced request, and only for
// handlers and the job token guard.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() {
		return ctx, noopSpan
	}
	if !shouldCreateHTTPAPISpan(name) {
		return ctx, noopSpan
	}
	return apiTracer.Start(ctx, name)
}

func shouldCreateHTTPAPISpan(name string) bool {
	for _, prefix := range spannedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func markSpanError(ctx context.Context, err error, mapped mappedError) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.reason", mapped.Reason))
	if mapped.HTTPStatus >= 500 {
		span.SetStatus(codes.Error, mapped.Reason)
	}
}
