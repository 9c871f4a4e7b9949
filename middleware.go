package wirespan

import (
	"fmt"
	"net/http"
	"strconv"
)

// Middleware returns an http middleware that traces every request through
// the wrapped handler.
//
// A valid inbound traceparent header continues the caller's trace; a
// missing or malformed one roots a new trace. Header problems never fail
// the request. The request span is bound into the request context before
// the handler runs, so spans started from that context become its children.
// The span is finalized on every exit path: normal return, panic (the panic
// is re-raised after finalization), and request cancellation.
func Middleware(tracer *Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if header := r.Header.Get(TraceparentHeader); header != "" {
				if tc, err := ParseTraceparent(header); err == nil {
					ctx = ContextWithRemote(ctx, tc, ParseTracestate(r.Header.Get(TracestateHeader)))
				}
			}

			ctx, span := tracer.StartSpan(ctx, requestName(r))
			span.SetTag("http.method", r.Method)
			span.SetTag("url.path", r.URL.Path)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				if rec := recover(); rec != nil {
					span.SetTag("error.type", "panic")
					span.SetStatus(StatusError, fmt.Sprintf("panic: %v", rec))
					span.Finish()
					panic(rec)
				}

				span.SetTag("http.status_code", strconv.Itoa(sw.status))
				switch {
				case ctx.Err() != nil:
					span.SetTag("error.type", "canceled")
					span.SetStatus(StatusError, ctx.Err().Error())
				case sw.status >= http.StatusInternalServerError:
					span.SetStatus(StatusError, http.StatusText(sw.status))
				default:
					span.SetStatus(StatusOK, "")
				}
				span.Finish()
			}()

			next.ServeHTTP(sw, r.WithContext(ctx))
		})
	}
}

// requestName derives the span operation name from the request line.
func requestName(r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

// statusWriter records the response status code for span finalization.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Flush passes through to the underlying writer when it supports streaming.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
