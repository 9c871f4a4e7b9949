package integration

import (
	"sync"
	"testing"

	"github.com/wirespan/wirespan"
)

// SpanSink wraps a real collector with test utilities for synchronous
// verification of exported spans.
type SpanSink struct {
	*wirespan.Collector
	t  *testing.T
	mu sync.Mutex
}

// NewSpanSink creates a collector in sync mode and registers it with the
// tracer so tests observe spans deterministically.
func NewSpanSink(t *testing.T, tracer *wirespan.Tracer, name string) *SpanSink {
	t.Helper()

	collector := wirespan.NewCollector(name, 256)
	collector.SetSyncMode(true)
	t.Cleanup(collector.Close)

	tracer.AddCollector(collector)
	return &SpanSink{Collector: collector, t: t}
}

// Spans drains and returns everything collected so far.
func (s *SpanSink) Spans() []wirespan.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Export()
}

// FindByName returns the first exported span with the given name.
func (s *SpanSink) FindByName(spans []wirespan.Span, name string) (wirespan.Span, bool) {
	s.t.Helper()
	for _, span := range spans {
		if span.Name == name {
			return span, true
		}
	}
	return wirespan.Span{}, false
}

// SpansByTrace groups spans by trace ID.
func SpansByTrace(spans []wirespan.Span) map[string][]wirespan.Span {
	traces := make(map[string][]wirespan.Span)
	for _, span := range spans {
		traces[span.TraceID] = append(traces[span.TraceID], span)
	}
	return traces
}
