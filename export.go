package wirespan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// NewLogHandler returns a completion handler that logs finished spans as
// structured entries. Error spans log at error level, everything else at
// info.
func NewLogHandler(logger logrus.FieldLogger) SpanHandler {
	return func(span Span) {
		entry := logger.WithFields(logrus.Fields{
			"trace_id": span.TraceID,
			"span_id":  span.SpanID,
			"name":     span.Name,
			"duration": span.Duration.String(),
		})
		if span.ParentID != "" {
			entry = entry.WithField("parent_id", span.ParentID)
		}
		if span.Status == StatusError {
			entry.WithField("status_message", span.StatusMessage).Error("span completed")
			return
		}
		entry.Info("span completed")
	}
}

// HTTPExporter batches finished spans and posts them as JSON to a tracing
// backend. Transient failures are retried by the underlying client.
// Safe for concurrent use by multiple goroutines.
type HTTPExporter struct {
	client    *retryablehttp.Client
	endpoint  string
	headers   map[string]string
	mu        sync.Mutex
	buf       []Span
	batchSize int
}

// ExporterOption configures an HTTPExporter.
type ExporterOption func(*HTTPExporter)

// WithBatchSize sets how many spans are buffered before a POST is sent.
func WithBatchSize(n int) ExporterOption {
	return func(e *HTTPExporter) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithHeaders sets extra headers sent with every export request, e.g. auth.
func WithHeaders(headers map[string]string) ExporterOption {
	return func(e *HTTPExporter) {
		e.headers = headers
	}
}

// WithRetryMax sets the maximum number of retries per export request.
func WithRetryMax(n int) ExporterOption {
	return func(e *HTTPExporter) {
		e.client.RetryMax = n
	}
}

// NewHTTPExporter creates an exporter posting to the given endpoint.
func NewHTTPExporter(endpoint string, opts ...ExporterOption) *HTTPExporter {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	e := &HTTPExporter{
		client:    client,
		endpoint:  endpoint,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handler returns a completion handler feeding this exporter. Register it
// with Tracer.OnSpanCompleteAsync so full batches are posted off the
// request path.
func (e *HTTPExporter) Handler() SpanHandler {
	return func(span Span) {
		e.mu.Lock()
		e.buf = append(e.buf, span)
		var batch []Span
		if len(e.buf) >= e.batchSize {
			batch = e.buf
			e.buf = nil
		}
		e.mu.Unlock()

		if batch != nil {
			// Export errors are swallowed here; the handler contract is
			// fire-and-forget. Use Flush for an error-checked drain.
			_ = e.send(context.Background(), batch)
		}
	}
}

// Flush posts any buffered spans immediately.
func (e *HTTPExporter) Flush(ctx context.Context) error {
	e.mu.Lock()
	batch := e.buf
	e.buf = nil
	e.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return e.send(ctx, batch)
}

func (e *HTTPExporter) send(ctx context.Context, spans []Span) error {
	body, err := json.Marshal(spans)
	if err != nil {
		return fmt.Errorf("marshal spans: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("export spans: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("export spans: unexpected status %d", resp.StatusCode)
	}
	return nil
}
