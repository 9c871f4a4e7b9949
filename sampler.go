package wirespan

import "encoding/hex"

// Sampler decides whether a newly rooted trace should be recorded.
type Sampler interface {
	ShouldSample(traceID string) bool
}

// AlwaysSample is a sampler that always samples.
type AlwaysSample struct{}

// ShouldSample always returns true.
func (AlwaysSample) ShouldSample(string) bool { return true }

// NeverSample is a sampler that never samples.
type NeverSample struct{}

// ShouldSample always returns false.
func (NeverSample) ShouldSample(string) bool { return false }

// RatioSampler samples a fraction of traces, deterministically per trace ID.
type RatioSampler struct {
	ratio float64
}

// NewRatioSampler creates a sampler that samples the given ratio of traces.
// The ratio is clamped to [0, 1].
func NewRatioSampler(ratio float64) *RatioSampler {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return &RatioSampler{ratio: ratio}
}

// ShouldSample returns true if the trace should be sampled based on the
// first 8 bytes of the trace ID.
func (s *RatioSampler) ShouldSample(traceID string) bool {
	if s.ratio >= 1 {
		return true
	}
	if s.ratio <= 0 {
		return false
	}
	if len(traceID) < 16 {
		return true
	}
	b, err := hex.DecodeString(traceID[:16])
	if err != nil {
		return true
	}
	var val uint64
	for i := 0; i < 8; i++ {
		val = (val << 8) | uint64(b[i])
	}
	threshold := uint64(s.ratio * float64(^uint64(0)))
	return val < threshold
}
