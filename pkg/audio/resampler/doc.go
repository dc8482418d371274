// Package resampler converts mono 16-bit audio between sample rates using a
// pure Go resampler (no CGO dependencies).
//
// Example usage:
//
//	// Microphone at 16kHz, realtime API at 24kHz
//	s, err := resampler.New(16000, 24000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for frame := range frames {
//	    out, err := s.Process(frame)
//	    ...
//	}
package resampler
