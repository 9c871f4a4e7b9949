package wirespan

import (
	"context"
	"sync"
	"time"
)

// bundleKeyType is a private type for context keys to avoid collisions.
type bundleKeyType string

const (
	bundleKey bundleKeyType = "wirespan"
	remoteKey bundleKeyType = "wirespan.remote"
)

// contextBundle holds both tracer and span to reduce context allocations.
type contextBundle struct {
	tracer *Tracer
	span   *Span
}

// remoteParent holds trace context decoded from an inbound request, before
// any local span exists for it.
type remoteParent struct {
	tc    TraceContext
	state TraceState
}

// SpanStatus is the outcome of a span's unit of work.
type SpanStatus int

const (
	// StatusUnset means the span has not been finalized yet.
	StatusUnset SpanStatus = iota
	// StatusOK means the work completed successfully.
	StatusOK
	// StatusError means the work failed, was aborted, or panicked.
	StatusError
)

// String returns the string representation of the status.
func (s SpanStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// Span represents a single unit of work in a distributed trace.
// Spans are NOT thread-safe - do not modify from multiple goroutines.
//
//nolint:govet // Field alignment optimized for JSON serialization order
type Span struct {
	Tags          map[Tag]string `json:"tags,omitempty"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time,omitempty"`
	Duration      time.Duration  `json:"duration"`
	TraceID       string         `json:"trace_id"`
	SpanID        string         `json:"span_id"`
	ParentID      string         `json:"parent_id,omitempty"`
	Name          string         `json:"name"`
	StatusMessage string         `json:"status_message,omitempty"`
	Status        SpanStatus     `json:"status"`
	Sampled       bool           `json:"sampled"`
}

// ActiveSpan wraps a Span with thread-safe mutation and lifecycle management.
// Safe for concurrent use by multiple goroutines.
type ActiveSpan struct {
	span   *Span
	tracer *Tracer
	mu     sync.Mutex // Protects span fields until finished.
}

// SetTag adds a key-value pair to the span.
// No-op if the span is already finished.
func (a *ActiveSpan) SetTag(key Tag, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.span.EndTime.IsZero() {
		return
	}

	if a.span.Tags == nil {
		a.span.Tags = make(map[Tag]string)
	}
	a.span.Tags[key] = value
}

// GetTag retrieves a tag value by key.
func (a *ActiveSpan) GetTag(key Tag) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.span.Tags == nil {
		return "", false
	}
	value, ok := a.span.Tags[key]
	return value, ok
}

// SetStatus records the span outcome. No-op once the span is finished.
func (a *ActiveSpan) SetStatus(status SpanStatus, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.span.EndTime.IsZero() {
		return
	}
	a.span.Status = status
	a.span.StatusMessage = message
}

// Finish completes the span and hands it to the tracer's completion
// handlers. A span finished without an explicit status is marked OK.
// Safe to call multiple times - subsequent calls are no-ops.
func (a *ActiveSpan) Finish() {
	a.mu.Lock()

	// Prevent double-finishing.
	if !a.span.EndTime.IsZero() {
		a.mu.Unlock()
		return
	}

	a.span.EndTime = a.tracer.clock.Now()
	a.span.Duration = a.span.EndTime.Sub(a.span.StartTime)
	if a.span.Status == StatusUnset {
		a.span.Status = StatusOK
	}
	finished := *a.span
	a.mu.Unlock()

	a.tracer.collectSpan(finished)
}

// TraceID returns the trace ID of this span.
func (a *ActiveSpan) TraceID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.TraceID
}

// SpanID returns the span ID of this span.
func (a *ActiveSpan) SpanID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.SpanID
}

// Sampled reports the span's sampling decision.
func (a *ActiveSpan) Sampled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.Sampled
}

// Context creates a new context with this span embedded.
// The returned context can be used to start child spans.
func (a *ActiveSpan) Context(parent context.Context) context.Context {
	bundle := &contextBundle{tracer: a.tracer, span: a.span}
	return context.WithValue(parent, bundleKey, bundle)
}

// GetSpan extracts the current span from a context.
// Returns nil if no span is present.
func GetSpan(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}

	if bundle, ok := ctx.Value(bundleKey).(*contextBundle); ok {
		return bundle.span
	}

	return nil
}

// ContextWithRemote records trace context decoded from an inbound request.
// A subsequent StartSpan on the returned context continues the remote trace
// instead of rooting a new one.
func ContextWithRemote(ctx context.Context, tc TraceContext, state TraceState) context.Context {
	return context.WithValue(ctx, remoteKey, &remoteParent{tc: tc, state: state})
}

// remoteFromContext returns the inbound trace context, if any.
func remoteFromContext(ctx context.Context) *remoteParent {
	if ctx == nil {
		return nil
	}
	if rp, ok := ctx.Value(remoteKey).(*remoteParent); ok {
		return rp
	}
	return nil
}

// RemoteState returns the tracestate that accompanied the inbound request,
// so outbound calls can echo it.
func RemoteState(ctx context.Context) (TraceState, bool) {
	if rp := remoteFromContext(ctx); rp != nil {
		return rp.state, true
	}
	return TraceState{}, false
}
