// Package transcript records completed conversation items of a realtime
// session.
//
// Each item is stored as a msgpack Record in a kv.Store under
// {"conv", session, seq}. Item audio, when present, is written as raw 24 kHz
// PCM16 to a storage.FileStore at "<session>/<seq>-<item>.pcm", and the
// record keeps the path.
//
//	rec := transcript.NewRecorder(store, files, "sess_1")
//	go rec.Run(ctx)
//	detach := rec.Attach(session)
//	defer rec.Close()
//	defer detach()
package transcript

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/realtalk/pkg/audio/pcm"
	"github.com/haivivi/realtalk/pkg/buffer"
	"github.com/haivivi/realtalk/pkg/kv"
	openairealtime "github.com/haivivi/realtalk/pkg/openai-realtime"
	"github.com/haivivi/realtalk/pkg/storage"
)

// Record is a stored conversation item.
type Record struct {
	Seq        int       `msgpack:"seq"`
	Session    string    `msgpack:"session"`
	ItemID     string    `msgpack:"item_id"`
	Type       string    `msgpack:"type"`
	Role       string    `msgpack:"role,omitempty"`
	Status     string    `msgpack:"status,omitempty"`
	Text       string    `msgpack:"text,omitempty"`
	Transcript string    `msgpack:"transcript,omitempty"`
	ToolName   string    `msgpack:"tool_name,omitempty"`
	CallID     string    `msgpack:"call_id,omitempty"`
	Arguments  string    `msgpack:"arguments,omitempty"`
	Output     string    `msgpack:"output,omitempty"`
	AudioFile  string    `msgpack:"audio_file,omitempty"`
	AudioMs    int       `msgpack:"audio_ms,omitempty"`
	RecordedAt time.Time `msgpack:"recorded_at"`
}

// SessionInfo describes a recorded session.
type SessionInfo struct {
	Key       string    `msgpack:"key"`
	Model     string    `msgpack:"model,omitempty"`
	StartedAt time.Time `msgpack:"started_at"`
	Items     int       `msgpack:"items"`
}

func itemKey(session string, seq int) kv.Key {
	return kv.Key{"conv", session, fmt.Sprintf("%08d", seq)}
}

func sessionKey(session string) kv.Key {
	return kv.Key{"session", session}
}

// Recorder persists completed items. Items are queued by the session
// handler and written by Run, so storage latency never blocks the receive
// loop. Recording an item again rewrites its record in place.
type Recorder struct {
	store   kv.Store
	files   storage.FileStore
	session string
	model   string
	queue   *buffer.Queue[*openairealtime.Item]
	done    chan struct{}

	mu      sync.Mutex
	seq     int
	seqs    map[string]int // item id -> seq
	started time.Time
}

// NewRecorder creates a recorder for one session. files may be nil, in
// which case audio is not stored.
func NewRecorder(store kv.Store, files storage.FileStore, session string) *Recorder {
	return &Recorder{
		store:   store,
		files:   files,
		session: session,
		queue:   buffer.NewQueue[*openairealtime.Item](),
		done:    make(chan struct{}),
		seqs:    make(map[string]int),
	}
}

// SetModel records the model name in the session info.
func (r *Recorder) SetModel(model string) {
	r.mu.Lock()
	r.model = model
	r.mu.Unlock()
}

// Attach queues every item completed in s. User messages complete when they
// are created, before their input audio transcription arrives, so they are
// queued again once the transcript lands. It returns a function that stops
// recording.
func (r *Recorder) Attach(s *openairealtime.Session) (detach func()) {
	bus := s.Events()
	completed := bus.On(openairealtime.SessionEventItemCompleted, func(ev *openairealtime.ConversationEvent) {
		if ev.Item == nil {
			return
		}
		r.push(ev.Item)
	})
	transcribed := bus.On(openairealtime.SessionEventUpdated, func(ev *openairealtime.ConversationEvent) {
		it := ev.Item
		if it == nil || ev.Delta == nil || it.Role != openairealtime.RoleUser {
			return
		}
		if it.Status != openairealtime.StatusCompleted || it.Formatted.Transcript == "" {
			return
		}
		r.push(it)
	})
	return func() {
		bus.Off(openairealtime.SessionEventItemCompleted, completed)
		bus.Off(openairealtime.SessionEventUpdated, transcribed)
	}
}

func (r *Recorder) push(item *openairealtime.Item) {
	if err := r.queue.Push(item.Clone()); err != nil {
		slog.Warn("transcript: drop item", "item", item.ID, "error", err)
	}
}

// Run writes queued items until Close is called and the queue is drained,
// or ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	defer close(r.done)
	for {
		item, err := r.queue.Pop(ctx)
		if errors.Is(err, buffer.ErrQueueDone) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := r.Record(ctx, item); err != nil {
			slog.Error("transcript: record item", "item", item.ID, "error", err)
		}
	}
}

// Close stops accepting items and waits for Run to write what is queued.
// It must not be called unless Run has been started.
func (r *Recorder) Close() error {
	r.queue.CloseWrite()
	<-r.done
	return nil
}

// Record stores item immediately and returns its record. An item recorded
// before keeps its sequence number and its record is overwritten.
func (r *Recorder) Record(ctx context.Context, item *openairealtime.Item) (*Record, error) {
	r.mu.Lock()
	seq, ok := r.seqs[item.ID]
	if !ok {
		seq = r.seq
		r.seq++
		r.seqs[item.ID] = seq
	}
	if r.started.IsZero() {
		r.started = time.Now()
	}
	info := SessionInfo{Key: r.session, Model: r.model, StartedAt: r.started, Items: r.seq}
	r.mu.Unlock()

	rec := &Record{
		Seq:        seq,
		Session:    r.session,
		ItemID:     item.ID,
		Type:       item.Type,
		Role:       item.Role,
		Status:     item.Status,
		Text:       item.Formatted.Text,
		Transcript: item.Formatted.Transcript,
		Output:     item.Formatted.Output,
		RecordedAt: time.Now(),
	}
	if t := item.Formatted.Tool; t != nil {
		rec.ToolName, rec.CallID, rec.Arguments = t.Name, t.CallID, t.Arguments
	}

	if audio := item.Formatted.Audio; len(audio) > 0 && r.files != nil {
		path := r.session + "/" + strconv.Itoa(seq) + "-" + item.ID + ".pcm"
		if err := storage.WriteFile(ctx, r.files, path, pcm.Bytes(audio)); err != nil {
			return nil, err
		}
		rec.AudioFile = path
		rec.AudioMs = openairealtime.SamplesToMs(len(audio), openairealtime.DefaultSampleRate)
	}

	recBytes, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("transcript: encode record: %w", err)
	}
	infoBytes, err := msgpack.Marshal(&info)
	if err != nil {
		return nil, fmt.Errorf("transcript: encode session: %w", err)
	}
	err = r.store.BatchSet(ctx, []kv.Entry{
		{Key: itemKey(r.session, seq), Value: recBytes},
		{Key: sessionKey(r.session), Value: infoBytes},
	})
	if err != nil {
		return nil, fmt.Errorf("transcript: store record: %w", err)
	}
	return rec, nil
}

// List returns the records of a session in recording order.
func List(ctx context.Context, store kv.Store, session string) ([]*Record, error) {
	return collect[Record](store.List(ctx, kv.Key{"conv", session}))
}

// Sessions returns every recorded session in key order.
func Sessions(ctx context.Context, store kv.Store) ([]*SessionInfo, error) {
	return collect[SessionInfo](store.List(ctx, kv.Key{"session"}))
}

func collect[T any](entries iter.Seq2[kv.Entry, error]) ([]*T, error) {
	var out []*T
	for e, err := range entries {
		if err != nil {
			return nil, fmt.Errorf("transcript: list: %w", err)
		}
		v := new(T)
		if err := msgpack.Unmarshal(e.Value, v); err != nil {
			return nil, fmt.Errorf("transcript: decode %s: %w", e.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadAudio loads the audio stored for rec.
func ReadAudio(ctx context.Context, files storage.FileStore, rec *Record) ([]int16, error) {
	if rec.AudioFile == "" {
		return nil, nil
	}
	b, err := storage.ReadFile(ctx, files, rec.AudioFile)
	if err != nil {
		return nil, fmt.Errorf("transcript: read audio: %w", err)
	}
	return pcm.Samples(b), nil
}
