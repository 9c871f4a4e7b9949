package wirespan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInjectFromActiveSpan(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	ctx, span := tracer.StartSpan(context.Background(), "client-operation")
	defer span.Finish()

	headers := http.Header{}
	Inject(ctx, headers)

	tc, err := ParseTraceparent(headers.Get(TraceparentHeader))
	if err != nil {
		t.Fatalf("Injected header failed to parse: %v", err)
	}
	if tc.TraceID != span.TraceID() {
		t.Errorf("Expected trace id %q, got %q", span.TraceID(), tc.TraceID)
	}
	if tc.ParentID != span.SpanID() {
		t.Errorf("Expected parent id %q (this span), got %q", span.SpanID(), tc.ParentID)
	}
	if !tc.Sampled() {
		t.Error("Expected sampled flag on injected header")
	}
}

func TestInjectUnsampledSpan(t *testing.T) {
	tracer := New(WithSampler(NeverSample{}))
	defer tracer.Close()

	ctx, span := tracer.StartSpan(context.Background(), "client-operation")
	defer span.Finish()

	headers := http.Header{}
	Inject(ctx, headers)

	tc, err := ParseTraceparent(headers.Get(TraceparentHeader))
	if err != nil {
		t.Fatalf("Injected header failed to parse: %v", err)
	}
	if tc.Sampled() {
		t.Error("Expected sampled flag unset for unsampled span")
	}
}

func TestInjectWithoutContext(t *testing.T) {
	headers := http.Header{}
	Inject(context.Background(), headers)

	if headers.Get(TraceparentHeader) != "" {
		t.Error("Expected no header without trace context")
	}
}

func TestInjectRemoteFallback(t *testing.T) {
	// An extracted-but-not-yet-spanned context still forwards.
	tc := TraceContext{TraceID: "4bf92f3577b34da6a3ce929d0e0e4736", ParentID: "00f067aa0ba902b7", Flags: 0x01}
	ctx := ContextWithRemote(context.Background(), tc, ParseTracestate("congo=t61rcWkgMzE"))

	headers := http.Header{}
	Inject(ctx, headers)

	if got := headers.Get(TraceparentHeader); got != specHeader {
		t.Errorf("Expected %q, got %q", specHeader, got)
	}
	if got := headers.Get(TracestateHeader); got != "congo=t61rcWkgMzE" {
		t.Errorf("Expected tracestate echo, got %q", got)
	}
}

func TestInjectEchoesTracestateWithSpan(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	tc := TraceContext{TraceID: "4bf92f3577b34da6a3ce929d0e0e4736", ParentID: "00f067aa0ba902b7", Flags: 0x01}
	ctx := ContextWithRemote(context.Background(), tc, ParseTracestate("congo=t61rcWkgMzE,rojo=00f067aa0ba902b7"))
	ctx, span := tracer.StartSpan(ctx, "server-operation")
	defer span.Finish()

	headers := http.Header{}
	Inject(ctx, headers)

	if got := headers.Get(TracestateHeader); got != "congo=t61rcWkgMzE,rojo=00f067aa0ba902b7" {
		t.Errorf("Expected inbound tracestate echoed, got %q", got)
	}
}

func TestTransportInjectsHeaders(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var gotTraceparent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTraceparent = r.Header.Get(TraceparentHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, span := tracer.StartSpan(context.Background(), "client-operation")
	defer span.Finish()

	client := &http.Client{Transport: &Transport{}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	resp.Body.Close()

	tc, err := ParseTraceparent(gotTraceparent)
	if err != nil {
		t.Fatalf("Server received unparseable traceparent %q: %v", gotTraceparent, err)
	}
	if tc.TraceID != span.TraceID() || tc.ParentID != span.SpanID() {
		t.Errorf("Expected propagation from the active span, got %+v", tc)
	}
}

func TestTransportWithoutSpan(t *testing.T) {
	var sawHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawHeader = r.Header.Get(TraceparentHeader) != ""
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &http.Client{Transport: &Transport{}}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	resp.Body.Close()

	if sawHeader {
		t.Error("Expected no traceparent without trace context")
	}
}
