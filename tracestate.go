package wirespan

import "strings"

// TraceStateEntry is one vendor key-value pair from a tracestate header.
type TraceStateEntry struct {
	Key   string
	Value string
}

// TraceState carries the vendor entries of a tracestate header in their
// inbound order. Entries are opaque to this library: nothing is interpreted,
// unknown keys pass through, and the raw header text is preserved so the
// outbound header echoes the inbound one byte for byte.
type TraceState struct {
	raw     string
	entries []TraceStateEntry
}

// NewTraceState builds a trace state from explicit entries.
func NewTraceState(entries ...TraceStateEntry) TraceState {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Key + "=" + e.Value
	}
	return TraceState{
		raw:     strings.Join(parts, ","),
		entries: entries,
	}
}

// ParseTracestate decodes a tracestate header value. It never fails:
// malformed entries are kept verbatim with an empty value so they survive
// the round trip unchanged.
func ParseTracestate(header string) TraceState {
	if header == "" {
		return TraceState{}
	}

	ts := TraceState{raw: header}
	for _, part := range strings.Split(header, ",") {
		entry := strings.TrimSpace(part)
		if entry == "" {
			continue
		}
		key, value, found := strings.Cut(entry, "=")
		if !found {
			// Opaque pass-through for entries this library cannot read.
			ts.entries = append(ts.entries, TraceStateEntry{Key: entry})
			continue
		}
		ts.entries = append(ts.entries, TraceStateEntry{Key: key, Value: value})
	}
	return ts
}

// FormatTracestate encodes a trace state for the outbound header. A state
// decoded by ParseTracestate is reproduced exactly as received.
func FormatTracestate(ts TraceState) string {
	return ts.raw
}

// String returns the header representation of the trace state.
func (ts TraceState) String() string {
	return ts.raw
}

// Len returns the number of decoded entries.
func (ts TraceState) Len() int {
	return len(ts.entries)
}

// Entries returns a copy of the decoded entries in inbound order.
func (ts TraceState) Entries() []TraceStateEntry {
	if len(ts.entries) == 0 {
		return nil
	}
	out := make([]TraceStateEntry, len(ts.entries))
	copy(out, ts.entries)
	return out
}

// Get returns the value for the first entry with the given key.
func (ts TraceState) Get(key string) (string, bool) {
	for _, e := range ts.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}
