package wirespan

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector buffers completed spans for batch export. It is the terminal
// sink of the request path and must never block it: when the intake channel
// is full, spans are dropped and counted instead.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field alignment optimized for readability over memory efficiency
type Collector struct {
	spans    []Span
	spansCh  chan Span
	stopCh   chan struct{}
	done     chan struct{}
	dropped  atomic.Int64
	name     string
	mu       sync.Mutex
	closed   atomic.Bool
	syncMode bool // Bypass the channel for deterministic tests.
}

// NewCollector creates a collector with the specified name and intake
// buffer size and starts its receive loop.
func NewCollector(name string, bufferSize int) *Collector {
	c := &Collector{
		name:    name,
		spans:   make([]Span, 0, 8),
		spansCh: make(chan Span, bufferSize),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.run()
	return c
}

// Name returns the collector's name.
func (c *Collector) Name() string {
	return c.name
}

// run receives spans from the intake channel until closed, draining any
// queued spans on shutdown.
func (c *Collector) run() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			for {
				select {
				case span := <-c.spansCh:
					c.buffer(span)
				default:
					return
				}
			}
		case span := <-c.spansCh:
			c.buffer(span)
		}
	}
}

// Collect queues a span with backpressure protection. If the intake channel
// is full or the collector is closed, the span is dropped and counted.
// In sync mode spans are buffered directly for deterministic testing.
func (c *Collector) Collect(span *Span) {
	if span == nil {
		c.dropped.Add(1)
		return
	}

	// Copy so later mutation by the caller cannot reach the buffer.
	spanCopy := *span
	if span.Tags != nil {
		spanCopy.Tags = make(map[Tag]string, len(span.Tags))
		for k, v := range span.Tags {
			spanCopy.Tags[k] = v
		}
	}

	if c.closed.Load() {
		c.dropped.Add(1)
		return
	}

	if c.syncMode {
		c.buffer(spanCopy)
		return
	}

	select {
	case c.spansCh <- spanCopy:
	default:
		c.dropped.Add(1)
	}
}

// buffer appends a span to the internal buffer.
func (c *Collector) buffer(span Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, span)
}

// Export returns a copy of all buffered spans and clears the internal
// buffer. The returned slice is safe to modify.
func (c *Collector) Export() []Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.spans) == 0 {
		return nil
	}

	result := make([]Span, len(c.spans))
	for i := range c.spans {
		result[i] = c.spans[i]
		if c.spans[i].Tags != nil {
			result[i].Tags = make(map[Tag]string, len(c.spans[i].Tags))
			for k, v := range c.spans[i].Tags {
				result[i].Tags[k] = v
			}
		}
	}

	// Shrink only when the buffer is badly oversized to avoid allocation
	// churn under steady load.
	if cap(c.spans) > 256 && len(c.spans) < cap(c.spans)/8 {
		c.spans = make([]Span, 0, cap(c.spans)/4)
	} else {
		c.spans = c.spans[:0]
	}

	return result
}

// Count returns the current number of buffered spans.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spans)
}

// DroppedCount returns the total number of spans dropped due to backpressure.
func (c *Collector) DroppedCount() int64 {
	return c.dropped.Load()
}

// SetSyncMode enables synchronous collection for testing. Spans are
// buffered directly without the intake channel, eliminating async behavior.
func (c *Collector) SetSyncMode(sync bool) {
	c.syncMode = sync
}

// Reset clears all buffered spans and resets the drop counter.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.spans = c.spans[:0]
	c.dropped.Store(0)
}

// Close shuts down the collector's receive loop, draining queued spans.
// Buffered spans remain available through Export.
func (c *Collector) Close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.stopCh)
	select {
	case <-c.done:
	case <-time.After(100 * time.Millisecond):
		// Receive loop did not drain in time; give up rather than hang.
	}
}
