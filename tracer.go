package wirespan

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// SpanHandler is called when a sampled span completes.
type SpanHandler func(span Span)

type handlerEntry struct {
	handler SpanHandler
	id      uint64
	async   bool
}

// Tracer builds spans and dispatches completed ones to registered handlers.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Tracer struct {
	handlers     []handlerEntry
	panicHook    func(handlerID uint64, r interface{})
	workers      *workerPool
	traceIDPool  *idPool
	spanIDPool   *idPool
	sampler      Sampler
	clock        clockz.Clock
	handlersLock sync.RWMutex
	idPoolOnce   sync.Once
	nextID       atomic.Uint64
	droppedSpans atomic.Uint64
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithClock injects a clock for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(t *Tracer) {
		t.clock = clock
	}
}

// WithSampler sets the sampling policy applied when rooting new traces.
// Continued traces keep the sampling decision carried by their inbound
// trace-flags.
func WithSampler(sampler Sampler) Option {
	return func(t *Tracer) {
		t.sampler = sampler
	}
}

// New creates a new tracer. By default it uses the real clock and samples
// every new trace.
func New(opts ...Option) *Tracer {
	t := &Tracer{
		handlers: make([]handlerEntry, 0),
		clock:    clockz.RealClock,
		sampler:  AlwaysSample{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ensureIDPools initializes ID pools if not already created.
func (t *Tracer) ensureIDPools() {
	t.idPoolOnce.Do(func() {
		// Pool size based on number of CPUs for optimal contention balance.
		poolSize := runtime.NumCPU() * 100

		t.traceIDPool = newIDPool(poolSize, func() string {
			bytes := make([]byte, 16)
			if _, err := rand.Read(bytes); err != nil {
				// Fallback to time-based ID if crypto/rand fails.
				return hex.EncodeToString([]byte(t.clock.Now().Format(time.RFC3339Nano)))
			}
			return hex.EncodeToString(bytes)
		})

		t.spanIDPool = newIDPool(poolSize, func() string {
			bytes := make([]byte, 8)
			if _, err := rand.Read(bytes); err != nil {
				// Fallback to time-based ID if crypto/rand fails.
				return hex.EncodeToString([]byte(t.clock.Now().Format("15:04:05.000000")))
			}
			return hex.EncodeToString(bytes)
		})
	})
}

// OnSpanComplete registers a synchronous handler called when sampled spans
// complete.
func (t *Tracer) OnSpanComplete(handler SpanHandler) uint64 {
	return t.registerHandler(handler, false)
}

// OnSpanCompleteAsync registers an asynchronous handler called when sampled
// spans complete.
func (t *Tracer) OnSpanCompleteAsync(handler SpanHandler) uint64 {
	return t.registerHandler(handler, true)
}

// AddCollector registers a collector as a completion handler.
func (t *Tracer) AddCollector(c *Collector) uint64 {
	return t.OnSpanComplete(func(span Span) {
		c.Collect(&span)
	})
}

func (t *Tracer) registerHandler(handler SpanHandler, async bool) uint64 {
	if handler == nil {
		return 0
	}

	id := t.nextID.Add(1)

	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	t.handlers = append(t.handlers, handlerEntry{
		id:      id,
		handler: handler,
		async:   async,
	})

	return id
}

// RemoveHandler removes a handler by ID.
func (t *Tracer) RemoveHandler(id uint64) {
	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	// Preserve order
	for i, h := range t.handlers {
		if h.id == id {
			copy(t.handlers[i:], t.handlers[i+1:])
			t.handlers = t.handlers[:len(t.handlers)-1]
			return
		}
	}
}

// SetPanicHook sets a function to be called when a handler panics.
func (t *Tracer) SetPanicHook(hook func(handlerID uint64, r interface{})) {
	t.panicHook = hook
}

// StartSpan creates a new span and returns it wrapped in an ActiveSpan.
//
// Parent resolution, in order: an in-process span already in the context
// makes the new span its child; otherwise a remote trace context recorded
// with ContextWithRemote continues that trace with a fresh span ID; failing
// both, a new trace is rooted with a fresh random trace ID and the sampling
// decision comes from the configured sampler.
func (t *Tracer) StartSpan(ctx context.Context, operation Key) (context.Context, *ActiveSpan) {
	// Handle nil context by creating a new one.
	if ctx == nil {
		ctx = context.Background()
	}

	span := &Span{
		SpanID:    t.generateSpanID(),
		Name:      string(operation),
		StartTime: t.clock.Now(),
	}

	if parent := GetSpan(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
		span.Sampled = parent.Sampled
	} else if remote := remoteFromContext(ctx); remote != nil {
		// Continuing a trace from an inbound traceparent header. The
		// inbound sampled flag carries the caller's decision.
		span.TraceID = remote.tc.TraceID
		span.ParentID = remote.tc.ParentID
		span.Sampled = remote.tc.Sampled()
	} else {
		span.TraceID = t.generateTraceID()
		span.Sampled = t.sampler.ShouldSample(span.TraceID)
	}

	activeSpan := &ActiveSpan{
		span:   span,
		tracer: t,
	}

	// Create new context with bundled tracer and span (single allocation optimization).
	bundle := &contextBundle{tracer: t, span: span}
	newCtx := context.WithValue(ctx, bundleKey, bundle)

	return newCtx, activeSpan
}

// collectSpan routes a finished span to the registered handlers. Unsampled
// spans are finalized but never dispatched.
func (t *Tracer) collectSpan(span Span) {
	if !span.Sampled {
		return
	}
	t.executeHandlers(span)
}

// executeHandlers calls all registered handlers with the completed span.
func (t *Tracer) executeHandlers(span Span) {
	t.handlersLock.RLock()
	if len(t.handlers) == 0 {
		t.handlersLock.RUnlock()
		return
	}

	handlers := make([]handlerEntry, len(t.handlers))
	copy(handlers, t.handlers)
	t.handlersLock.RUnlock()

	for _, h := range handlers {
		if h.async {
			// Make a copy of h for closure
			entry := h
			if t.workers != nil {
				t.workers.submit(func() {
					t.safeCall(entry, span)
				})
			} else {
				go t.safeCall(entry, span)
			}
		} else {
			t.safeCall(h, span)
		}
	}
}

func (t *Tracer) safeCall(entry handlerEntry, span Span) {
	defer func() {
		if r := recover(); r != nil {
			if t.panicHook != nil {
				t.panicHook(entry.id, r)
			}
		}
	}()
	entry.handler(span)
}

// EnableWorkerPool creates a bounded worker pool for async handlers.
func (t *Tracer) EnableWorkerPool(workers, queueSize int) error {
	if t.workers != nil {
		return errors.New("worker pool already enabled")
	}
	if workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if queueSize <= 0 {
		return errors.New("queueSize must be > 0")
	}

	t.workers = &workerPool{
		tasks:   make(chan func(), queueSize),
		stop:    make(chan struct{}),
		dropped: &t.droppedSpans,
	}

	t.workers.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go t.workers.run()
	}

	return nil
}

// DroppedSpans returns the number of spans dropped due to full worker queue.
func (t *Tracer) DroppedSpans() uint64 {
	return t.droppedSpans.Load()
}

// Close shuts down the tracer gracefully and cleans up resources.
// This should be called when the tracer is no longer needed.
func (t *Tracer) Close() {
	// Stop new handler executions
	t.handlersLock.Lock()
	t.handlers = nil
	t.handlersLock.Unlock()

	// Wait for in-flight async tasks
	if t.workers != nil {
		t.workers.shutdown()
		t.workers = nil
	}

	// Close ID pools
	if t.traceIDPool != nil {
		t.traceIDPool.close()
	}
	if t.spanIDPool != nil {
		t.spanIDPool.close()
	}
}

// generateTraceID creates a new random trace ID.
func (t *Tracer) generateTraceID() string {
	t.ensureIDPools()
	return t.traceIDPool.get()
}

// generateSpanID creates a new random span ID.
func (t *Tracer) generateSpanID() string {
	t.ensureIDPools()
	return t.spanIDPool.get()
}

// workerPool manages a fixed number of workers for processing async handlers.
//
//nolint:govet // Field order optimized for functionality over memory
type workerPool struct {
	tasks   chan func()
	stop    chan struct{}
	dropped *atomic.Uint64
	wg      sync.WaitGroup
}

func (w *workerPool) run() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.tasks:
			task()
		case <-w.stop:
			return
		}
	}
}

func (w *workerPool) submit(task func()) {
	select {
	case w.tasks <- task:
	default:
		w.dropped.Add(1)
	}
}

func (w *workerPool) shutdown() {
	close(w.stop)
	w.wg.Wait()
}
