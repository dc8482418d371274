package openairealtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/haivivi/realtalk/pkg/audio/resampler"
	"github.com/haivivi/realtalk/pkg/buffer"
)

// SampleSource produces PCM16 samples, e.g. a microphone. ReadSamples
// returns io.EOF when the source is exhausted.
type SampleSource interface {
	ReadSamples(p []int16) (int, error)
}

// SampleSink consumes PCM16 samples, e.g. a speaker. WriteSamples may block
// for as long as playback takes.
type SampleSink interface {
	WriteSamples(samples []int16) error
}

// InputAppender receives captured audio. *Session implements it.
type InputAppender interface {
	AppendInputAudio(samples []int16) error
}

type audioChunk struct {
	itemID  string
	samples []int16
}

// Player plays assistant audio deltas and tracks how much of each item was
// actually played, so a barge-in can truncate the item on the server to
// what the user heard.
type Player struct {
	queue *buffer.Queue[audioChunk]

	mu      sync.Mutex
	itemID  string
	played  int
	busy    bool
	skipped string // last interrupted item
}

// NewPlayer creates an idle player.
func NewPlayer() *Player {
	return &Player{
		queue: buffer.NewQueue[audioChunk](),
	}
}

// Enqueue queues samples of an item for playback. Audio of an interrupted
// item is dropped.
func (p *Player) Enqueue(itemID string, samples []int16) error {
	p.mu.Lock()
	skip := itemID == p.skipped
	p.mu.Unlock()
	if skip || len(samples) == 0 {
		return nil
	}
	return p.queue.Push(audioChunk{itemID: itemID, samples: samples})
}

// Run writes queued audio to sink until ctx is done or Close is called.
func (p *Player) Run(ctx context.Context, sink SampleSink) error {
	for {
		c, err := p.queue.Pop(ctx)
		if errors.Is(err, buffer.ErrQueueDone) {
			return nil
		}
		if err != nil {
			return err
		}

		p.mu.Lock()
		if c.itemID == p.skipped {
			p.mu.Unlock()
			continue
		}
		if c.itemID != p.itemID {
			p.itemID = c.itemID
			p.played = 0
		}
		p.busy = true
		p.mu.Unlock()

		err = sink.WriteSamples(c.samples)

		p.mu.Lock()
		if p.itemID == c.itemID {
			p.played += len(c.samples)
		}
		p.busy = false
		p.mu.Unlock()

		if err != nil {
			return fmt.Errorf("openai-realtime: play: %w", err)
		}
	}
}

// Playing returns the item being played and the samples played so far, or
// "" when nothing is playing or queued.
func (p *Player) Playing() (itemID string, played int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.busy && p.queue.Len() == 0 {
		return "", 0
	}
	return p.itemID, p.played
}

// Interrupt stops playback. It drops all queued audio and returns the item
// that was playing with the number of its samples already played. Later
// audio for that item is ignored until another item is interrupted. It returns "" when nothing was playing.
func (p *Player) Interrupt() (itemID string, played int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := p.queue.Drain()
	switch {
	case p.busy || (p.itemID != "" && len(pending) > 0 && pending[0].itemID == p.itemID):
		itemID, played = p.itemID, p.played
	case len(pending) > 0:
		itemID = pending[0].itemID
	default:
		return "", 0
	}
	p.skipped = itemID
	p.itemID = ""
	p.played = 0
	return itemID, played
}

// Close stops Run once the queued audio has been played.
func (p *Player) Close() error {
	return p.queue.CloseWrite()
}

// Attach feeds the player from s and cancels the playing response when the
// user starts speaking. It returns a function that detaches the player.
// Session.Reset removes the handlers, so Attach again after a reset.
func (p *Player) Attach(s *Session) (detach func()) {
	bus := s.Events()
	updated := bus.On(SessionEventUpdated, func(ev *ConversationEvent) {
		if ev.Item == nil || ev.Delta == nil || len(ev.Delta.Audio) == 0 {
			return
		}
		if ev.Item.Role != RoleAssistant {
			return
		}
		if err := p.Enqueue(ev.Item.ID, ev.Delta.Audio); err != nil {
			slog.Warn("player enqueue", "item", ev.Item.ID, "error", err)
		}
	})
	interrupted := bus.On(SessionEventInterrupted, func(ev *ConversationEvent) {
		// Events carrying an item come from CancelResponse itself.
		if ev.Item != nil {
			return
		}
		itemID, played := p.Interrupt()
		if itemID == "" {
			return
		}
		if err := s.CancelResponse(itemID, played); err != nil {
			slog.Warn("cancel response on interrupt", "item", itemID, "error", err)
		}
	})
	return func() {
		bus.Off(SessionEventUpdated, updated)
		bus.Off(SessionEventInterrupted, interrupted)
	}
}

// Microphone streams captured audio into a session's input buffer.
type Microphone struct {
	input      InputAppender
	sourceRate int
	frame      time.Duration
	stream     *resampler.Stream
}

// MicrophoneOption configures a Microphone.
type MicrophoneOption func(*Microphone)

// WithSourceRate sets the sample rate of the source. Audio is resampled to
// DefaultSampleRate when they differ.
func WithSourceRate(rate int) MicrophoneOption {
	return func(m *Microphone) {
		m.sourceRate = rate
	}
}

// WithFrameDuration sets how much audio is read and sent at a time. The
// default is 20ms.
func WithFrameDuration(d time.Duration) MicrophoneOption {
	return func(m *Microphone) {
		m.frame = d
	}
}

// NewMicrophone creates a microphone that appends to input.
func NewMicrophone(input InputAppender, opts ...MicrophoneOption) (*Microphone, error) {
	m := &Microphone{
		input:      input,
		sourceRate: DefaultSampleRate,
		frame:      20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sourceRate != DefaultSampleRate {
		s, err := resampler.New(m.sourceRate, DefaultSampleRate)
		if err != nil {
			return nil, err
		}
		m.stream = s
	}
	return m, nil
}

// Run reads src frame by frame and appends each frame to the input buffer.
// It returns nil when src reaches io.EOF.
func (m *Microphone) Run(ctx context.Context, src SampleSource) error {
	n := max(int(time.Duration(m.sourceRate)*m.frame/time.Second), 1)
	buf := make([]int16, n)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.ReadSamples(buf)
		if n > 0 {
			samples := buf[:n]
			if m.stream != nil {
				var rerr error
				if samples, rerr = m.stream.Process(samples); rerr != nil {
					return rerr
				}
			}
			if aerr := m.input.AppendInputAudio(samples); aerr != nil {
				return aerr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
