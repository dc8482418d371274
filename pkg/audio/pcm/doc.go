// Package pcm provides helpers for raw 16-bit little-endian mono PCM audio.
//
// Key types:
//   - Format: sample rate of a mono L16 stream
//   - Reader: reads int16 samples from a byte stream
//   - Writer: writes int16 samples to a byte stream
//
// Example usage:
//
//	// 24kHz mono, the realtime wire format
//	format := pcm.L16Mono24K
//
//	// Samples in 20ms of audio
//	n := format.SamplesInDuration(20 * time.Millisecond)
//
//	// Stream a file in 20ms frames
//	r := pcm.NewReader(f)
//	frame := make([]int16, n)
//	for {
//	    n, err := r.ReadSamples(frame)
//	    ...
//	}
package pcm
