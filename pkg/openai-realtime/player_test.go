package openairealtime

import (
	"context"
	"io"
	"slices"
	"sync"
	"testing"
	"time"
)

// recordSink records written samples. When gate is non-nil each write
// blocks until a value is received from it.
type recordSink struct {
	gate    chan struct{}
	started chan struct{}

	mu      sync.Mutex
	samples []int16
}

func (s *recordSink) WriteSamples(samples []int16) error {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.samples = append(s.samples, samples...)
	s.mu.Unlock()
	return nil
}

func (s *recordSink) written() []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.samples)
}

func runPlayer(t *testing.T, p *Player, sink SampleSink) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), sink) }()
	t.Cleanup(func() { p.Close() })
	return done
}

func TestPlayerPlaysInOrder(t *testing.T) {
	p := NewPlayer()
	sink := &recordSink{}
	p.Enqueue("A", []int16{1, 2})
	p.Enqueue("A", []int16{3})
	p.Enqueue("B", []int16{4})
	p.Enqueue("B", nil)
	p.Close()

	if err := p.Run(context.Background(), sink); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := sink.written(); !slices.Equal(got, []int16{1, 2, 3, 4}) {
		t.Fatalf("played = %v, want [1 2 3 4]", got)
	}
	if id, _ := p.Playing(); id != "" {
		t.Fatalf("Playing() = %q after drain, want \"\"", id)
	}
}

func TestPlayerInterrupt(t *testing.T) {
	p := NewPlayer()
	sink := &recordSink{gate: make(chan struct{}), started: make(chan struct{}, 8)}
	done := runPlayer(t, p, sink)

	p.Enqueue("A", make([]int16, 100))
	p.Enqueue("A", make([]int16, 50))
	p.Enqueue("A", make([]int16, 50))

	<-sink.started
	sink.gate <- struct{}{} // first chunk done
	<-sink.started          // second chunk is being written

	if id, played := p.Playing(); id != "A" || played != 100 {
		t.Fatalf("Playing() = (%q, %d), want (A, 100)", id, played)
	}
	id, played := p.Interrupt()
	if id != "A" || played != 100 {
		t.Fatalf("Interrupt() = (%q, %d), want (A, 100)", id, played)
	}
	sink.gate <- struct{}{} // let the in-flight write finish

	p.Enqueue("A", make([]int16, 10))
	p.Enqueue("B", []int16{7})
	<-sink.started
	sink.gate <- struct{}{}

	p.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got := sink.written()
	if len(got) != 151 || got[150] != 7 {
		t.Fatalf("played %d samples (last %v), want 151 ending in 7", len(got), got[len(got)-1])
	}
}

func TestPlayerInterruptIdle(t *testing.T) {
	p := NewPlayer()
	if id, played := p.Interrupt(); id != "" || played != 0 {
		t.Fatalf("Interrupt() = (%q, %d), want (\"\", 0)", id, played)
	}
}

func TestPlayerInterruptQueuedOnly(t *testing.T) {
	p := NewPlayer()
	p.Enqueue("B", []int16{1, 2})
	if id, played := p.Interrupt(); id != "B" || played != 0 {
		t.Fatalf("Interrupt() = (%q, %d), want (B, 0)", id, played)
	}
	if p.queue.Len() != 0 {
		t.Fatalf("queue not drained")
	}
}

func TestPlayerInterruptKeepsLastItem(t *testing.T) {
	p := NewPlayer()
	for _, id := range []string{"A", "B", "C"} {
		p.Enqueue(id, []int16{1})
		if got, _ := p.Interrupt(); got != id {
			t.Fatalf("Interrupt() = %q, want %q", got, id)
		}
		if p.skipped != id {
			t.Fatalf("skipped = %q, want %q", p.skipped, id)
		}
	}
	p.Enqueue("C", []int16{1})
	if p.queue.Len() != 0 {
		t.Fatalf("audio of interrupted item C was queued")
	}
	p.Enqueue("D", []int16{1})
	if p.queue.Len() != 1 {
		t.Fatalf("queue len = %d, want 1", p.queue.Len())
	}
}

func TestPlayerAttach(t *testing.T) {
	s, conn := connectedSession(t)
	p := NewPlayer()
	sink := &recordSink{gate: make(chan struct{}), started: make(chan struct{}, 8)}
	runPlayer(t, p, sink)
	detach := p.Attach(s)
	defer detach()

	tr := s.Transport()
	conn.serve(t, tr, map[string]any{
		"type": EventTypeConversationItemCreated,
		"item": map[string]any{
			"id": "a1", "type": "message", "role": "assistant",
			"content": []any{map[string]any{"type": "audio"}},
		},
	})
	conn.serve(t, tr, map[string]any{
		"type":    EventTypeResponseAudioDelta,
		"item_id": "a1",
		"delta":   EncodeAudio(make([]int16, 480)),
	})
	<-sink.started

	start := conn.count()
	conn.serve(t, tr, map[string]any{
		"type":           EventTypeInputAudioBufferSpeechStarted,
		"item_id":        "u1",
		"audio_start_ms": 0,
	})
	sink.gate <- struct{}{}

	frames := conn.frames(t)[start:]
	if len(frames) != 2 || frames[0]["type"] != EventTypeResponseCancel {
		t.Fatalf("sends = %v, want cancel + truncate", conn.typesSince(t, start))
	}
	if frames[1]["item_id"] != "a1" || frames[1]["audio_end_ms"] != float64(0) {
		t.Fatalf("truncate = %v", frames[1])
	}
}

type recordAppender struct {
	mu     sync.Mutex
	frames [][]int16
}

func (a *recordAppender) AppendInputAudio(samples []int16) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frames = append(a.frames, slices.Clone(samples))
	return nil
}

type sliceSource struct {
	samples []int16
}

func (s *sliceSource) ReadSamples(p []int16) (int, error) {
	if len(s.samples) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.samples)
	s.samples = s.samples[n:]
	return n, nil
}

func TestMicrophoneFrames(t *testing.T) {
	in := &recordAppender{}
	m, err := NewMicrophone(in)
	if err != nil {
		t.Fatalf("NewMicrophone() error: %v", err)
	}
	if err := m.Run(context.Background(), &sliceSource{samples: make([]int16, 1000)}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	var sizes []int
	for _, f := range in.frames {
		sizes = append(sizes, len(f))
	}
	if !slices.Equal(sizes, []int{480, 480, 40}) {
		t.Fatalf("frame sizes = %v, want [480 480 40]", sizes)
	}
}

func TestMicrophoneResamples(t *testing.T) {
	in := &recordAppender{}
	m, err := NewMicrophone(in, WithSourceRate(16000), WithFrameDuration(100*time.Millisecond))
	if err != nil {
		t.Fatalf("NewMicrophone() error: %v", err)
	}
	src := make([]int16, 16000)
	for i := range src {
		src[i] = int16(i % 100)
	}
	if err := m.Run(context.Background(), &sliceSource{samples: src}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	total := 0
	for _, f := range in.frames {
		total += len(f)
	}
	if total < 18000 || total > 24500 {
		t.Fatalf("resampled %d samples from 1s of 16kHz, want about 24000", total)
	}
}

func TestMicrophoneCancelled(t *testing.T) {
	m, err := NewMicrophone(&recordAppender{})
	if err != nil {
		t.Fatalf("NewMicrophone() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx, &sliceSource{samples: make([]int16, 10)}); err != context.Canceled {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}
