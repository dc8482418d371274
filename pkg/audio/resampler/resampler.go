package resampler

import (
	"fmt"
	"math"
	"slices"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Stream resamples consecutive chunks of mono int16 audio. The filter state
// carries over between chunks, so a stream split into frames resamples
// without seams.
type Stream struct {
	srcRate int
	dstRate int

	mu        sync.Mutex
	resampler resampling.Resampler
}

// New creates a Stream that converts from srcRate to dstRate Hz.
func New(srcRate, dstRate int) (*Stream, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	s := &Stream{srcRate: srcRate, dstRate: dstRate}
	if srcRate == dstRate {
		return s, nil
	}
	config := &resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	}
	r, err := resampling.New(config)
	if err != nil {
		return nil, fmt.Errorf("resampler: failed to create resampler: %w", err)
	}
	s.resampler = r
	return s, nil
}

// SrcRate returns the input sample rate.
func (s *Stream) SrcRate() int { return s.srcRate }

// DstRate returns the output sample rate.
func (s *Stream) DstRate() int { return s.dstRate }

// Process resamples one chunk. The output may be shorter than the ideal
// length while the filter fills.
func (s *Stream) Process(samples []int16) ([]int16, error) {
	if s.resampler == nil {
		return slices.Clone(samples), nil
	}
	if len(samples) == 0 {
		return nil, nil
	}

	// Convert to float64 samples (normalized to -1.0 to 1.0)
	input := make([]float64, len(samples))
	for i, v := range samples {
		input[i] = float64(v) / 32768.0
	}

	s.mu.Lock()
	output, err := s.resampler.Process(input)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}

	out := make([]int16, len(output))
	for i, v := range output {
		out[i] = toInt16(v)
	}
	return out, nil
}

// Resample converts a whole buffer from srcRate to dstRate.
func Resample(samples []int16, srcRate, dstRate int) ([]int16, error) {
	s, err := New(srcRate, dstRate)
	if err != nil {
		return nil, err
	}
	return s.Process(samples)
}

func toInt16(v float64) int16 {
	switch {
	case v >= 1.0:
		return math.MaxInt16
	case v <= -1.0:
		return math.MinInt16
	}
	return int16(v * 32767.0)
}
