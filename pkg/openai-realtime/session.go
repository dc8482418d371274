package openairealtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/haivivi/realtalk/pkg/eventbus"
)

// Names dispatched on the session event bus.
const (
	// SessionEventRealtime carries every transport event, in both
	// directions.
	SessionEventRealtime = "realtime.event"

	// SessionEventUpdated is dispatched whenever an item changes.
	SessionEventUpdated = "conversation.updated"

	// SessionEventItemAppended is dispatched when a new item is created.
	SessionEventItemAppended = "conversation.item.appended"

	// SessionEventItemCompleted is dispatched when an item completes.
	SessionEventItemCompleted = "conversation.item.completed"

	// SessionEventInterrupted is dispatched when the user starts speaking
	// or a response is cancelled for an item.
	SessionEventInterrupted = "conversation.interrupted"

	// SessionEventClose is dispatched when the connection drops or a
	// protocol error ends it.
	SessionEventClose = "close"
)

const sessionCreatedPollInterval = 100 * time.Millisecond

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionModel sets the model passed to the dialer.
func WithSessionModel(model string) SessionOption {
	return func(s *Session) {
		s.model = model
	}
}

// WithSessionConfig sets overrides applied on top of DefaultSessionConfig
// whenever the session is created or reset.
func WithSessionConfig(cfg *SessionConfig) SessionOption {
	return func(s *Session) {
		s.initial = cfg
	}
}

// Session is a realtime conversation. It wires a Transport to a
// Conversation, keeps the session configuration and registered tools, mirrors
// the input audio buffer, and runs tool calls.
//
// All methods are safe for concurrent use. Handlers for server-driven events
// run on the receive goroutine, in server event order. Events caused by a
// method call, such as realtime.event for client frames and
// conversation.interrupted from CancelResponse, run on the calling goroutine,
// which may be a tool-call goroutine. Handlers must not assume they are
// serialized.
type Session struct {
	dialer    Dialer
	model     string
	initial   *SessionConfig
	transport *Transport
	bus       *eventbus.Bus[*ConversationEvent]

	mu             sync.Mutex
	config         *SessionConfig
	tools          map[string]*registeredTool
	toolNames      []string
	inputAudio     []int16
	conversation   *Conversation
	sessionCreated bool
	toolCtx        context.Context
	toolCancel     context.CancelFunc

	toolWG sync.WaitGroup
}

// NewSession creates a disconnected session that connects through dialer.
// A *Client is a Dialer.
func NewSession(dialer Dialer, opts ...SessionOption) *Session {
	s := &Session{
		dialer: dialer,
		bus:    eventbus.New[*ConversationEvent](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.transport = NewTransport(dialer)
	s.init()
	s.installHandlers()
	return s
}

func (s *Session) init() {
	s.config = DefaultSessionConfig()
	s.config.Merge(s.initial)
	s.tools = make(map[string]*registeredTool)
	s.toolNames = nil
	s.inputAudio = nil
	s.conversation = NewConversation(DefaultSampleRate)
	s.sessionCreated = false
	s.toolCtx, s.toolCancel = context.WithCancel(context.Background())
}

// Events returns the session event bus.
func (s *Session) Events() *eventbus.Bus[*ConversationEvent] {
	return s.bus
}

// Transport returns the underlying transport.
func (s *Session) Transport() *Transport {
	return s.transport
}

// Conversation returns the conversation state.
func (s *Session) Conversation() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation
}

// Items returns the conversation items in creation order.
func (s *Session) Items() []*Item {
	return s.Conversation().Items()
}

// Config returns a copy of the session configuration, including the
// definitions of registered tools.
func (s *Session) Config() *SessionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.effectiveConfig(s.config)
	if err != nil {
		return s.config.Clone()
	}
	return cfg
}

// InputAudio returns a copy of the uncommitted input audio.
func (s *Session) InputAudio() []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.inputAudio)
}

// IsConnected reports whether the transport is connected.
func (s *Session) IsConnected() bool {
	return s.transport.IsConnected()
}

// Connect connects the transport and pushes the current configuration.
func (s *Session) Connect(ctx context.Context) error {
	if s.transport.IsConnected() {
		return ErrAlreadyConnected
	}
	if err := s.transport.Connect(ctx, s.model); err != nil {
		return err
	}
	return s.UpdateSession(nil)
}

// Disconnect closes the connection. Pending WaitForNext calls on either
// event bus return with ok false.
func (s *Session) Disconnect() error {
	err := s.transport.Disconnect()
	s.mu.Lock()
	s.sessionCreated = false
	s.mu.Unlock()
	s.transport.Events().Abort()
	s.bus.Abort()
	return err
}

// WaitForSessionCreated blocks until the server has sent session.created.
// It returns immediately if that already happened.
func (s *Session) WaitForSessionCreated(ctx context.Context) error {
	ticker := time.NewTicker(sessionCreatedPollInterval)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		created := s.sessionCreated
		s.mu.Unlock()
		if created {
			return nil
		}
		if !s.transport.IsConnected() {
			return ErrNotConnected
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// UpdateSession merges overrides into the configuration and, when
// connected, sends session.update with the result. A nil overrides just
// re-sends the configuration.
func (s *Session) UpdateSession(overrides *SessionConfig) error {
	s.mu.Lock()
	next := s.config.Clone()
	next.Merge(overrides)
	cfg, err := s.effectiveConfig(next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.config = next
	s.mu.Unlock()

	if !s.transport.IsConnected() {
		return nil
	}
	return s.transport.Send(EventTypeSessionUpdate, map[string]any{"session": cfg})
}

// effectiveConfig returns cfg with the registered tools appended to its
// tool list.
func (s *Session) effectiveConfig(cfg *SessionConfig) (*SessionConfig, error) {
	out := cfg.Clone()
	for _, name := range s.toolNames {
		if slices.ContainsFunc(out.Tools, func(d ToolDefinition) bool { return d.Name == name }) {
			return nil, fmt.Errorf("%w: %q is both configured and registered", ErrToolExists, name)
		}
		out.Tools = append(out.Tools, s.tools[name].def)
	}
	if out.Tools == nil {
		out.Tools = []ToolDefinition{}
	}
	return out, nil
}

// AddTool registers a tool and re-sends the configuration. A registered
// name must be removed before it can be added again.
func (s *Session) AddTool(def ToolDefinition, handler ToolHandler) error {
	t, err := newRegisteredTool(def, handler)
	if err != nil {
		return err
	}
	s.mu.Lock()
	_, exists := s.tools[def.Name]
	if !exists {
		exists = slices.ContainsFunc(s.config.Tools, func(d ToolDefinition) bool { return d.Name == def.Name })
	}
	if exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrToolExists, def.Name)
	}
	s.tools[def.Name] = t
	s.toolNames = append(s.toolNames, def.Name)
	s.mu.Unlock()
	return s.UpdateSession(nil)
}

// RemoveTool unregisters a tool and re-sends the configuration.
func (s *Session) RemoveTool(name string) error {
	s.mu.Lock()
	if _, ok := s.tools[name]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	delete(s.tools, name)
	s.toolNames = slices.DeleteFunc(s.toolNames, func(n string) bool { return n == name })
	s.mu.Unlock()
	return s.UpdateSession(nil)
}

// Tools returns the names of registered tools in registration order.
func (s *Session) Tools() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.toolNames)
}

// SendUserMessageContent creates a user message and requests a response.
// input_audio parts that carry Samples are base64-encoded before sending.
func (s *Session) SendUserMessageContent(content []ContentPart) error {
	for i := range content {
		if content[i].Type == ContentTypeInputAudio && content[i].Samples != nil {
			content[i].Audio = EncodeAudio(content[i].Samples)
			content[i].Samples = nil
		}
	}
	err := s.transport.Send(EventTypeConversationItemCreate, map[string]any{
		"item": ConversationItem{
			Type:    ItemTypeMessage,
			Role:    RoleUser,
			Content: content,
		},
	})
	if err != nil {
		return err
	}
	return s.CreateResponse()
}

// AppendInputAudio sends samples to the server input buffer and appends
// them to the local mirror. Empty input is ignored.
func (s *Session) AppendInputAudio(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	err := s.transport.Send(EventTypeInputAudioBufferAppend, map[string]any{
		"audio": EncodeAudio(samples),
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.inputAudio = append(s.inputAudio, samples...)
	s.mu.Unlock()
	return nil
}

// CreateResponse requests a response. Without turn detection, buffered input
// audio is committed first and queued for the user item it becomes.
func (s *Session) CreateResponse() error {
	s.mu.Lock()
	var pending []int16
	if s.config.TurnDetectionType() == "" && len(s.inputAudio) > 0 {
		pending = s.inputAudio
	}
	conv := s.conversation
	s.mu.Unlock()

	if pending != nil {
		if err := s.transport.Send(EventTypeInputAudioBufferCommit, nil); err != nil {
			return err
		}
		conv.QueueInputAudio(pending)

		s.mu.Lock()
		if len(s.inputAudio) > len(pending) {
			s.inputAudio = slices.Clone(s.inputAudio[len(pending):])
		} else {
			s.inputAudio = nil
		}
		s.mu.Unlock()
	}
	return s.transport.Send(EventTypeResponseCreate, nil)
}

// CancelResponse cancels the in-flight response. With an empty id the
// cancel is untargeted. With an id, the assistant audio item is also
// truncated to sampleCount samples, the amount actually played.
func (s *Session) CancelResponse(id string, sampleCount int) error {
	if id == "" {
		return s.transport.Send(EventTypeResponseCancel, nil)
	}

	item := s.Conversation().Snapshot(id)
	if item == nil {
		return &ItemNotFoundError{ItemID: id}
	}
	if item.Type != ItemTypeMessage || item.Role != RoleAssistant {
		return fmt.Errorf("%w: %q", ErrNotAssistantMessage, id)
	}
	idx := item.AudioPartIndex()
	if idx < 0 {
		return fmt.Errorf("%w: item %q", ErrNoAudio, id)
	}

	if err := s.transport.Send(EventTypeResponseCancel, nil); err != nil {
		return err
	}
	err := s.transport.Send(EventTypeConversationItemTruncate, map[string]any{
		"item_id":       id,
		"content_index": idx,
		"audio_end_ms":  SamplesToMs(sampleCount, DefaultSampleRate),
	})
	if err != nil {
		return err
	}
	s.bus.Dispatch(SessionEventInterrupted, &ConversationEvent{Item: item})
	return nil
}

// DeleteItem asks the server to delete an item.
func (s *Session) DeleteItem(id string) error {
	return s.transport.Send(EventTypeConversationItemDelete, map[string]any{"item_id": id})
}

// Reset disconnects and returns the session to its freshly constructed
// state. Every handler registered on either event bus is removed.
func (s *Session) Reset() {
	s.transport.Disconnect()
	s.transport.Events().Reset()
	s.bus.Reset()

	s.mu.Lock()
	s.toolCancel()
	s.init()
	s.mu.Unlock()

	s.installHandlers()
}

func (s *Session) installHandlers() {
	tb := s.transport.Events()

	forward := func(ev *TransportEvent) {
		s.bus.Dispatch(SessionEventRealtime, &ConversationEvent{Event: ev})
	}
	tb.On(TransportEventClientAll, forward)
	tb.On(TransportEventServerAll, forward)

	tb.On(TransportEventClose, func(ev *TransportEvent) {
		s.mu.Lock()
		s.sessionCreated = false
		s.mu.Unlock()
		tb.Abort()
		s.bus.Abort()
		s.bus.Dispatch(SessionEventClose, &ConversationEvent{Event: ev})
	})

	on := func(eventType string, fn func(*TransportEvent)) {
		tb.On("server."+eventType, fn)
	}

	on(EventTypeError, func(ev *TransportEvent) {
		if e := ev.Server.Error; e != nil {
			slog.Warn("realtime server error", "type", e.Type, "code", e.Code, "message", e.Message)
		}
	})
	on(EventTypeSessionCreated, func(*TransportEvent) {
		s.mu.Lock()
		s.sessionCreated = true
		s.mu.Unlock()
	})

	processOnly := func(ev *TransportEvent) {
		s.process(ev)
	}
	on(EventTypeResponseCreated, processOnly)
	on(EventTypeResponseOutputItemAdded, processOnly)
	on(EventTypeResponseContentPartAdded, processOnly)
	on(EventTypeInputAudioBufferSpeechStopped, processOnly)

	on(EventTypeInputAudioBufferSpeechStarted, func(ev *TransportEvent) {
		if _, _, ok := s.process(ev); ok {
			s.bus.Dispatch(SessionEventInterrupted, &ConversationEvent{Event: ev})
		}
	})

	on(EventTypeConversationItemCreated, func(ev *TransportEvent) {
		item, delta, ok := s.process(ev)
		if !ok {
			return
		}
		payload := &ConversationEvent{Item: item, Delta: delta, Event: ev}
		s.bus.Dispatch(SessionEventUpdated, payload)
		s.bus.Dispatch(SessionEventItemAppended, payload)
		if item.Status == StatusCompleted {
			s.bus.Dispatch(SessionEventItemCompleted, payload)
		}
	})

	updated := func(ev *TransportEvent) {
		item, delta, ok := s.process(ev)
		if ok && item != nil {
			s.bus.Dispatch(SessionEventUpdated, &ConversationEvent{Item: item, Delta: delta, Event: ev})
		}
	}
	for _, t := range []string{
		EventTypeConversationItemTruncated,
		EventTypeConversationItemDeleted,
		EventTypeConversationItemInputAudioTranscriptionCompleted,
		EventTypeResponseAudioTranscriptDelta,
		EventTypeResponseAudioDelta,
		EventTypeResponseTextDelta,
		EventTypeResponseFunctionCallArgumentsDelta,
	} {
		on(t, updated)
	}

	on(EventTypeResponseOutputItemDone, func(ev *TransportEvent) {
		item, delta, ok := s.process(ev)
		if !ok {
			return
		}
		payload := &ConversationEvent{Item: item, Delta: delta, Event: ev}
		s.bus.Dispatch(SessionEventUpdated, payload)
		if item.Status == StatusCompleted {
			s.bus.Dispatch(SessionEventItemCompleted, payload)
		}
		if item.IsCompletedFunctionCall() {
			call := *item.Formatted.Tool
			s.toolWG.Add(1)
			go func() {
				defer s.toolWG.Done()
				s.callTool(call)
			}()
		}
	})
}

// process applies a server event to the conversation. A protocol error ends
// the connection.
func (s *Session) process(ev *TransportEvent) (*Item, *Delta, bool) {
	s.mu.Lock()
	conv := s.conversation
	input := s.inputAudio
	s.mu.Unlock()

	item, delta, err := conv.ProcessEvent(ev.Server, input)
	if err != nil {
		s.protocolError(ev, err)
		return nil, nil, false
	}
	return item, delta, true
}

func (s *Session) protocolError(ev *TransportEvent, err error) {
	slog.Error("realtime protocol error", "type", ev.Type, "error", err)
	s.transport.Disconnect()
	s.mu.Lock()
	s.sessionCreated = false
	s.mu.Unlock()
	s.transport.Events().Abort()
	s.bus.Abort()
	s.bus.Dispatch(SessionEventClose, &ConversationEvent{Event: &TransportEvent{
		Time: time.Now(),
		Type: TransportEventClose,
		Err:  err,
	}})
}

// callTool runs a completed function call and sends its output followed by
// a new response request. Failures become {"error": message} outputs.
func (s *Session) callTool(call ToolCall) {
	s.mu.Lock()
	t := s.tools[call.Name]
	ctx := s.toolCtx
	s.mu.Unlock()

	var result any
	var err error
	if t == nil {
		err = fmt.Errorf("%w: %q", ErrToolNotFound, call.Name)
	} else {
		result, err = invokeTool(ctx, t, call.Arguments)
	}
	if err != nil {
		slog.Warn("tool call failed", "tool", call.Name, "call_id", call.CallID, "error", err)
	}

	output := toolOutput(result, err)
	err = s.transport.Send(EventTypeConversationItemCreate, map[string]any{
		"item": ConversationItem{
			Type:   ItemTypeFunctionCallOutput,
			CallID: call.CallID,
			Output: output,
		},
	})
	if err != nil {
		slog.Error("send tool output", "tool", call.Name, "error", err)
		return
	}
	if err := s.CreateResponse(); err != nil {
		slog.Error("create response after tool call", "tool", call.Name, "error", err)
	}
}

func invokeTool(ctx context.Context, t *registeredTool, arguments string) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", t.def.Name, r)
		}
	}()
	return t.call(ctx, arguments)
}
