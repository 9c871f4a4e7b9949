package wirespan

import (
	"context"
	"testing"
)

func TestActiveSpanSetTag(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	_, span := tracer.StartSpan(context.Background(), "test-operation")
	span.SetTag("user.id", "123")

	if value, ok := span.GetTag("user.id"); !ok || value != "123" {
		t.Errorf("Expected tag value '123', got %q (found=%v)", value, ok)
	}
}

func TestActiveSpanSetTagAfterFinish(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	_, span := tracer.StartSpan(context.Background(), "test-operation")
	span.Finish()
	span.SetTag("late", "value")

	if _, ok := span.GetTag("late"); ok {
		t.Error("Expected SetTag after Finish to be a no-op")
	}
}

func TestActiveSpanFinishIdempotent(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var collected []Span
	tracer.OnSpanComplete(func(span Span) {
		collected = append(collected, span)
	})

	_, span := tracer.StartSpan(context.Background(), "test-operation")
	span.Finish()
	span.Finish()
	span.Finish()

	if len(collected) != 1 {
		t.Errorf("Expected exactly 1 collected span, got %d", len(collected))
	}
}

func TestActiveSpanDefaultStatusOK(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var collected []Span
	tracer.OnSpanComplete(func(span Span) {
		collected = append(collected, span)
	})

	_, span := tracer.StartSpan(context.Background(), "test-operation")
	span.Finish()

	if len(collected) != 1 {
		t.Fatalf("Expected 1 collected span, got %d", len(collected))
	}
	if collected[0].Status != StatusOK {
		t.Errorf("Expected default status OK, got %v", collected[0].Status)
	}
	if collected[0].EndTime.Before(collected[0].StartTime) {
		t.Error("Expected EndTime >= StartTime")
	}
}

func TestActiveSpanSetStatus(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var collected []Span
	tracer.OnSpanComplete(func(span Span) {
		collected = append(collected, span)
	})

	_, span := tracer.StartSpan(context.Background(), "test-operation")
	span.SetStatus(StatusError, "backend unavailable")
	span.Finish()

	// Status changes after Finish must not stick.
	span.SetStatus(StatusOK, "")

	if len(collected) != 1 {
		t.Fatalf("Expected 1 collected span, got %d", len(collected))
	}
	if collected[0].Status != StatusError {
		t.Errorf("Expected status ERROR, got %v", collected[0].Status)
	}
	if collected[0].StatusMessage != "backend unavailable" {
		t.Errorf("Unexpected status message %q", collected[0].StatusMessage)
	}
}

func TestSpanStatusString(t *testing.T) {
	tests := []struct {
		status SpanStatus
		want   string
	}{
		{StatusUnset, "UNSET"},
		{StatusOK, "OK"},
		{StatusError, "ERROR"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestGetSpan(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	ctx, span := tracer.StartSpan(context.Background(), "test-operation")

	extracted := GetSpan(ctx)
	if extracted == nil {
		t.Fatal("Expected span in context")
	}
	if extracted.SpanID != span.SpanID() {
		t.Error("Expected the context to carry the started span")
	}

	if GetSpan(context.Background()) != nil {
		t.Error("Expected nil span for empty context")
	}
	if GetSpan(nil) != nil { //nolint:staticcheck // Explicit nil-context behavior.
		t.Error("Expected nil span for nil context")
	}
}

func TestActiveSpanContext(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	_, span := tracer.StartSpan(context.Background(), "test-operation")
	ctx := span.Context(context.Background())

	extracted := GetSpan(ctx)
	if extracted == nil || extracted.SpanID != span.SpanID() {
		t.Error("Expected Context to embed the span")
	}
}

func TestRemoteStateRoundTrip(t *testing.T) {
	tc := TraceContext{TraceID: "4bf92f3577b34da6a3ce929d0e0e4736", ParentID: "00f067aa0ba902b7", Flags: 0x01}
	state := ParseTracestate("congo=t61rcWkgMzE")

	ctx := ContextWithRemote(context.Background(), tc, state)

	got, ok := RemoteState(ctx)
	if !ok {
		t.Fatal("Expected remote state in context")
	}
	if got.String() != "congo=t61rcWkgMzE" {
		t.Errorf("Unexpected remote state %q", got.String())
	}

	if _, ok := RemoteState(context.Background()); ok {
		t.Error("Expected no remote state in empty context")
	}
}
