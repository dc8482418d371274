package resampler

import (
	"math"
	"slices"
	"testing"
)

func sine(n, rate int, freq float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(8000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestPassthrough(t *testing.T) {
	in := []int16{1, 2, 3}
	out, err := Resample(in, 24000, 24000)
	if err != nil {
		t.Fatalf("Resample() error: %v", err)
	}
	if !slices.Equal(out, in) {
		t.Fatalf("Resample() = %v, want %v", out, in)
	}
	out[0] = 9
	if in[0] != 1 {
		t.Fatalf("passthrough aliases its input")
	}
}

func TestInvalidRates(t *testing.T) {
	if _, err := New(0, 24000); err == nil {
		t.Fatalf("New(0, 24000): want error")
	}
}

func TestUpsampleLength(t *testing.T) {
	s, err := New(16000, 24000)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if s.SrcRate() != 16000 || s.DstRate() != 24000 {
		t.Fatalf("rates = %d -> %d", s.SrcRate(), s.DstRate())
	}
	in := sine(16000, 16000, 440)
	total := 0
	for i := 0; i < len(in); i += 320 {
		out, err := s.Process(in[i : i+320])
		if err != nil {
			t.Fatalf("Process() error: %v", err)
		}
		total += len(out)
	}
	// One second in, about one second out, minus filter delay.
	if total < 18000 || total > 24500 {
		t.Fatalf("output samples = %d, want about 24000", total)
	}
}

func TestToInt16Clamps(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{1.5, math.MaxInt16},
		{-2, math.MinInt16},
		{0.5, 16383},
	}
	for _, tt := range tests {
		if got := toInt16(tt.in); got != tt.want {
			t.Fatalf("toInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
