// Package wirespan propagates W3C Trace Context across HTTP request
// boundaries and manages the span representing each request's server-side
// handling.
//
// wirespan focuses on the request boundary: parsing and formatting the
// traceparent/tracestate headers, deciding whether to continue an inbound
// trace or root a new one, scoping the request span to the handler's
// execution so nested spans become its children, and handing finished spans
// to a collector. It deliberately avoids the surface area of full
// OpenTelemetry.
//
// Core Components:.
//   - TraceContext: a decoded traceparent header value.
//   - Tracer: builds spans and dispatches completed ones.
//   - Span / ActiveSpan: one unit of work and its thread-safe wrapper.
//   - Middleware: the net/http request interceptor.
//   - Collector: buffers completed spans for export.
//
// Basic Usage:.
//
//	tracer := wirespan.New()
//	defer tracer.Close()
//
//	collector := wirespan.NewCollector("traces", 1000)
//	tracer.AddCollector(collector)
//
//	handler := wirespan.Middleware(tracer)(mux)
//	http.ListenAndServe(":8080", handler)
//
// Inside a handler, child spans nest automatically:
//
//	ctx, span := tracer.StartSpan(r.Context(), "db.query")
//	defer span.Finish()
//
// Propagation:.
//
// The middleware reads the inbound traceparent header. A valid header
// continues the caller's trace; a missing or malformed one roots a new
// trace. A bad header never fails the request. Outbound clients forward
// the context with Inject or by wrapping their http.Client with Transport.
// The tracestate header passes through opaquely in both directions.
//
// Thread Safety:.
//
// Tracer, Collector, and ActiveSpan are safe for concurrent use. Span
// values handed to completion handlers are copies owned by the handler.
// Concurrent requests are isolated through context values; no request ever
// observes another request's span.
package wirespan

// Key represents a span operation name.
type Key = string

// Tag represents a span tag key.
type Tag = string
