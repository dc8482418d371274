package openairealtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/haivivi/realtalk/pkg/eventbus"
)

// Conn is one live realtime connection that carries JSON text frames.
type Conn interface {
	// ReadMessage blocks until the next frame arrives. It returns an
	// error once the connection is closed.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one frame. Calls are serialized by Transport.
	WriteMessage(data []byte) error

	// Close closes the connection and unblocks ReadMessage.
	Close() error
}

// Dialer opens connections to the realtime endpoint for a model.
type Dialer interface {
	Dial(ctx context.Context, model string) (Conn, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context, model string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, model string) (Conn, error) {
	return f(ctx, model)
}

// TransportState is the connection state of a Transport.
type TransportState int

const (
	StateDisconnected TransportState = iota
	StateConnecting
	StateConnected
)

func (s TransportState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return fmt.Sprintf("TransportState(%d)", int(s))
}

// Transport owns a single connection and fans every frame out on its event
// bus. Outgoing frames are dispatched as "client.<type>" and "client.*"
// before they are written; incoming frames as "server.<type>" and
// "server.*", in arrival order, on the receive goroutine.
type Transport struct {
	dialer Dialer
	bus    *eventbus.Bus[*TransportEvent]

	mu    sync.Mutex
	state TransportState
	conn  Conn

	writeMu sync.Mutex
}

// NewTransport creates a disconnected transport.
func NewTransport(dialer Dialer) *Transport {
	return &Transport{
		dialer: dialer,
		bus:    eventbus.New[*TransportEvent](),
	}
}

// Events returns the transport event bus.
func (t *Transport) Events() *eventbus.Bus[*TransportEvent] {
	return t.bus
}

// State returns the current connection state.
func (t *Transport) State() TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsConnected reports whether the transport holds an open connection.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateConnected && t.conn != nil
}

// Connect dials the endpoint for model and starts the receive loop.
func (t *Transport) Connect(ctx context.Context, model string) error {
	t.mu.Lock()
	if t.state != StateDisconnected {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.state = StateConnecting
	t.mu.Unlock()

	conn, err := t.dialer.Dial(ctx, model)

	t.mu.Lock()
	if err != nil {
		t.state = StateDisconnected
		t.mu.Unlock()
		return fmt.Errorf("openai-realtime: connect: %w", err)
	}
	if t.state != StateConnecting {
		// Disconnect was called while dialing.
		t.mu.Unlock()
		conn.Close()
		return fmt.Errorf("openai-realtime: connect: %w", context.Canceled)
	}
	t.conn = conn
	t.state = StateConnected
	t.mu.Unlock()

	slog.Debug("realtime connected", "model", model)
	go t.readLoop(conn)
	return nil
}

// Disconnect closes the connection. It is safe to call at any time and more
// than once. No close event is dispatched for a client-initiated disconnect.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.state = StateDisconnected
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	slog.Debug("realtime disconnecting")
	return conn.Close()
}

// Send writes a client event. data holds the event payload without event_id
// and type, which Send fills in.
func (t *Transport) Send(eventType string, data map[string]any) error {
	t.mu.Lock()
	conn := t.conn
	connected := t.state == StateConnected
	t.mu.Unlock()
	if !connected || conn == nil {
		return fmt.Errorf("%w: cannot send %s", ErrNotConnected, eventType)
	}

	frame := make(map[string]any, len(data)+2)
	maps.Copy(frame, data)
	frame["event_id"] = NewEventID("evt_")
	frame["type"] = eventType

	b, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("openai-realtime: encode %s: %w", eventType, err)
	}

	ev := &TransportEvent{
		Time:   time.Now(),
		Source: SourceClient,
		Type:   eventType,
		Client: frame,
	}
	t.bus.Dispatch("client."+eventType, ev)
	t.bus.Dispatch(TransportEventClientAll, ev)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		str := string(b)
		if len(str) > 500 {
			str = str[:500] + "..."
		}
		slog.Debug("sending event", "type", eventType, "content", str)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteMessage(b); err != nil {
		return fmt.Errorf("openai-realtime: send %s: %w", eventType, err)
	}
	return nil
}

func (t *Transport) readLoop(conn Conn) {
	for {
		message, err := conn.ReadMessage()
		if err != nil {
			t.closed(conn, fmt.Errorf("openai-realtime: read: %w", err))
			return
		}

		if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			msgStr := string(message)
			if len(msgStr) > 1000 {
				msgStr = msgStr[:1000] + "..."
			}
			slog.Debug("received message", "len", len(message), "content", msgStr)
		}

		event, err := parseServerEvent(message)
		if err != nil {
			conn.Close()
			t.closed(conn, err)
			return
		}

		ev := &TransportEvent{
			Time:   time.Now(),
			Source: SourceServer,
			Type:   event.Type,
			Server: event,
		}
		t.bus.Dispatch("server."+event.Type, ev)
		t.bus.Dispatch(TransportEventServerAll, ev)
	}
}

// closed handles the end of conn's receive loop. If conn is still the
// current connection the server or network dropped it, and a close event is
// dispatched.
func (t *Transport) closed(conn Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.state = StateDisconnected
	t.mu.Unlock()

	slog.Warn("realtime connection closed", "error", err)
	t.bus.Dispatch(TransportEventClose, &TransportEvent{
		Time: time.Now(),
		Type: TransportEventClose,
		Err:  err,
	})
}

func parseServerEvent(message []byte) (*ServerEvent, error) {
	var event ServerEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, fmt.Errorf("openai-realtime: malformed frame: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("openai-realtime: malformed frame: missing type")
	}
	event.Raw = message
	return &event, nil
}
