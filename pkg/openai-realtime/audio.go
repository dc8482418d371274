package openairealtime

import (
	"encoding/base64"
	"math"

	"github.com/haivivi/realtalk/pkg/audio/pcm"
)

// DefaultSampleRate is the sample rate of pcm16 audio on the wire.
const DefaultSampleRate = 24000

// EncodeAudio returns samples as base64 PCM16, the wire encoding of audio.
func EncodeAudio(samples []int16) string {
	return base64.StdEncoding.EncodeToString(pcm.Bytes(samples))
}

// DecodeAudio parses base64 PCM16 audio.
func DecodeAudio(s string) ([]int16, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return pcm.Samples(b), nil
}

// MsToSamples converts a duration in milliseconds to a sample count,
// rounding to the nearest sample.
func MsToSamples(ms int, sampleRate int) int {
	return int(math.Round(float64(ms) * float64(sampleRate) / 1000))
}

// SamplesToMs converts a sample count to whole milliseconds, rounding down.
func SamplesToMs(samples int, sampleRate int) int {
	return int(math.Floor(float64(samples) / float64(sampleRate) * 1000))
}
