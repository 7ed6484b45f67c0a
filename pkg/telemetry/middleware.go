package telemetry

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader carries the request's trace id back to the caller so client
// logs can be correlated with server spans.
const TraceIDHeader = "X-Trace-ID"

// TracingMiddleware opens a server span per request. The span is named after
// the gin route template, not the raw URL, so /contracts/:id stays one series
// regardless of the id.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName + "/http")
	propagator := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			// Unmatched routes (404s) fall back to the raw path
			route = c.Request.URL.Path
		}

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(requestAttributes(c)...),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID := sc.TraceID().String()
			c.Header(TraceIDHeader, traceID)
			c.Set("trace_id", traceID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		finishSpan(c, span)
	}
}

func requestAttributes(c *gin.Context) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.HTTPMethod(c.Request.Method),
		semconv.HTTPURL(c.Request.URL.String()),
		semconv.HTTPRoute(c.FullPath()),
		semconv.NetHostName(c.Request.Host),
		semconv.UserAgentOriginal(c.Request.UserAgent()),
		attribute.String("http.client_ip", c.ClientIP()),
	}
}

func finishSpan(c *gin.Context, span trace.Span) {
	status := c.Writer.Status()
	span.SetAttributes(
		semconv.HTTPStatusCode(status),
		attribute.Int("http.response_size", c.Writer.Size()),
	)

	if len(c.Errors) > 0 {
		span.RecordError(c.Errors.Last())
	}
	if status >= 500 {
		span.SetStatus(codes.Error, "server error")
	}
}
