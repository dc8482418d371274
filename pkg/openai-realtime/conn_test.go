package openairealtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn. Frames pushed with serve are read by the
// transport; frames written by the transport are recorded.
type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu  sync.Mutex
	out [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errors.New("fake conn closed")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) frames(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([]map[string]any, 0, len(c.out))
	for _, b := range c.out {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("unmarshal sent frame: %v", err)
		}
		frames = append(frames, m)
	}
	return frames
}

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	var types []string
	for _, f := range c.frames(t) {
		types = append(types, f["type"].(string))
	}
	return types
}

// typesSince returns the types of frames written after the first n.
func (c *fakeConn) typesSince(t *testing.T, n int) []string {
	t.Helper()
	types := c.types(t)
	if n > len(types) {
		return nil
	}
	return types[n:]
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.out)
}

// serve pushes a server frame and waits until the transport has dispatched
// it to every persistent handler.
func (c *fakeConn) serve(t *testing.T, tr *Transport, frame map[string]any) {
	t.Helper()
	if _, ok := frame["event_id"]; !ok {
		frame["event_id"] = NewEventID("event_")
	}
	b, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	done := make(chan struct{})
	tr.Events().OnNext("server."+frame["type"].(string), func(*TransportEvent) { close(done) })
	c.in <- b
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("frame %s was not dispatched", frame["type"])
	}
}

// fakeDialer hands out fakeConns in order.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	model string
	err   error
}

func (d *fakeDialer) Dial(_ context.Context, model string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.model = model
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}
