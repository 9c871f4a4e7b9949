package wirespan

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// W3C Trace Context header names.
const (
	TraceparentHeader = "traceparent"
	TracestateHeader  = "tracestate"
)

const (
	// traceparentVersion is the version byte this library emits.
	traceparentVersion byte = 0x00

	// versionInvalid is reserved by the W3C spec and must be rejected.
	versionInvalid byte = 0xff

	traceIDHexLen = 32
	spanIDHexLen  = 16

	zeroTraceID = "00000000000000000000000000000000"
	zeroSpanID  = "0000000000000000"
)

// FlagSampled is bit 0 of the trace-flags field.
const FlagSampled byte = 0x01

// Parse failures for the traceparent header. ParseTraceparent wraps these
// with detail; match with errors.Is.
var (
	ErrMalformedLength = errors.New("traceparent: malformed field layout")
	ErrInvalidHex      = errors.New("traceparent: invalid hex")
	ErrInvalidVersion  = errors.New("traceparent: invalid version")
	ErrAllZeroID       = errors.New("traceparent: all-zero id")
)

// TraceContext is a decoded traceparent header value. IDs are normalized to
// lowercase hex. Immutable once decoded.
type TraceContext struct {
	TraceID  string // 32 lowercase hex characters
	ParentID string // 16 lowercase hex characters
	Version  byte
	Flags    byte
}

// Sampled reports whether the sampled flag (bit 0) is set.
func (tc TraceContext) Sampled() bool {
	return tc.Flags&FlagSampled != 0
}

// ParseTraceparent decodes a traceparent header value.
//
// The expected layout is version-traceid-parentid-flags with hex field
// widths 2-32-16-2. Hex digits are accepted in either case. Versions other
// than 0x00 are accepted and preserved on the decoded value as long as the
// layout matches; 0xff is reserved and rejected.
func ParseTraceparent(header string) (TraceContext, error) {
	parts := strings.Split(header, "-")
	if len(parts) != 4 {
		return TraceContext{}, fmt.Errorf("%w: %d segments", ErrMalformedLength, len(parts))
	}
	if len(parts[0]) != 2 || len(parts[1]) != traceIDHexLen || len(parts[2]) != spanIDHexLen || len(parts[3]) != 2 {
		return TraceContext{}, fmt.Errorf("%w: field widths %d-%d-%d-%d",
			ErrMalformedLength, len(parts[0]), len(parts[1]), len(parts[2]), len(parts[3]))
	}

	version, err := parseHexByte(parts[0])
	if err != nil {
		return TraceContext{}, fmt.Errorf("%w: version %q", ErrInvalidHex, parts[0])
	}
	if version == versionInvalid {
		return TraceContext{}, fmt.Errorf("%w: 0xff is reserved", ErrInvalidVersion)
	}

	traceID := strings.ToLower(parts[1])
	if !isHex(traceID) {
		return TraceContext{}, fmt.Errorf("%w: trace id %q", ErrInvalidHex, parts[1])
	}
	if traceID == zeroTraceID {
		return TraceContext{}, fmt.Errorf("%w: trace id", ErrAllZeroID)
	}

	parentID := strings.ToLower(parts[2])
	if !isHex(parentID) {
		return TraceContext{}, fmt.Errorf("%w: parent id %q", ErrInvalidHex, parts[2])
	}
	if parentID == zeroSpanID {
		return TraceContext{}, fmt.Errorf("%w: parent id", ErrAllZeroID)
	}

	flags, err := parseHexByte(parts[3])
	if err != nil {
		return TraceContext{}, fmt.Errorf("%w: flags %q", ErrInvalidHex, parts[3])
	}

	return TraceContext{
		Version:  version,
		TraceID:  traceID,
		ParentID: parentID,
		Flags:    flags,
	}, nil
}

// FormatTraceparent encodes a traceparent header value. Output is always
// lowercase with fixed field widths, and always carries the version this
// library supports regardless of tc.Version.
func FormatTraceparent(tc TraceContext) string {
	return fmt.Sprintf("%02x-%s-%s-%02x", traceparentVersion, tc.TraceID, tc.ParentID, tc.Flags)
}

// parseHexByte decodes exactly one hex-encoded byte.
func parseHexByte(s string) (byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// isHex reports whether s contains only hex digits (either case).
func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
