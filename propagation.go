package wirespan

import (
	"context"
	"net/http"
)

// Inject writes the current trace context into outbound headers so the next
// service continues the trace.
//
// With an active span in the context, the traceparent carries the span's
// trace ID as the caller, i.e. its span ID becomes the downstream parent.
// Without one, a remote context recorded by the middleware is forwarded
// as-is. The inbound tracestate is echoed unmodified in both cases.
func Inject(ctx context.Context, headers http.Header) {
	if span := GetSpan(ctx); span != nil {
		var flags byte
		if span.Sampled {
			flags |= FlagSampled
		}
		headers.Set(TraceparentHeader, FormatTraceparent(TraceContext{
			TraceID:  span.TraceID,
			ParentID: span.SpanID,
			Flags:    flags,
		}))
		if state, ok := RemoteState(ctx); ok && state.String() != "" {
			headers.Set(TracestateHeader, state.String())
		}
		return
	}

	if rp := remoteFromContext(ctx); rp != nil {
		headers.Set(TraceparentHeader, FormatTraceparent(rp.tc))
		if rp.state.String() != "" {
			headers.Set(TracestateHeader, rp.state.String())
		}
	}
}

// Transport is an http.RoundTripper that injects trace context into every
// outgoing request. Wrap a client's transport to propagate automatically:
//
//	client := &http.Client{Transport: &wirespan.Transport{}}
type Transport struct {
	// Base is the underlying round tripper. http.DefaultTransport when nil.
	Base http.RoundTripper
}

// RoundTrip injects propagation headers and delegates to the base transport.
// The request is cloned first, per the RoundTripper contract.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	req = req.Clone(req.Context())
	Inject(req.Context(), req.Header)
	return base.RoundTrip(req)
}
