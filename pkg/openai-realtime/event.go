package openairealtime

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client event types (sent from client to server).
const (
	EventTypeSessionUpdate = "session.update"

	EventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	EventTypeInputAudioBufferCommit = "input_audio_buffer.commit"
	EventTypeInputAudioBufferClear  = "input_audio_buffer.clear"

	EventTypeConversationItemCreate   = "conversation.item.create"
	EventTypeConversationItemTruncate = "conversation.item.truncate"
	EventTypeConversationItemDelete   = "conversation.item.delete"

	EventTypeResponseCreate = "response.create"
	EventTypeResponseCancel = "response.cancel"
)

// Server event types (sent from server to client).
const (
	EventTypeError = "error"

	EventTypeSessionCreated = "session.created"
	EventTypeSessionUpdated = "session.updated"

	EventTypeConversationCreated                              = "conversation.created"
	EventTypeConversationItemCreated                          = "conversation.item.created"
	EventTypeConversationItemInputAudioTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	EventTypeConversationItemInputAudioTranscriptionFailed    = "conversation.item.input_audio_transcription.failed"
	EventTypeConversationItemTruncated                        = "conversation.item.truncated"
	EventTypeConversationItemDeleted                          = "conversation.item.deleted"

	EventTypeInputAudioBufferCommitted     = "input_audio_buffer.committed"
	EventTypeInputAudioBufferCleared       = "input_audio_buffer.cleared"
	EventTypeInputAudioBufferSpeechStarted = "input_audio_buffer.speech_started"
	EventTypeInputAudioBufferSpeechStopped = "input_audio_buffer.speech_stopped"

	EventTypeResponseCreated          = "response.created"
	EventTypeResponseDone             = "response.done"
	EventTypeResponseOutputItemAdded  = "response.output_item.added"
	EventTypeResponseOutputItemDone   = "response.output_item.done"
	EventTypeResponseContentPartAdded = "response.content_part.added"
	EventTypeResponseContentPartDone  = "response.content_part.done"

	EventTypeResponseTextDelta = "response.text.delta"
	EventTypeResponseTextDone  = "response.text.done"

	EventTypeResponseAudioDelta = "response.audio.delta"
	EventTypeResponseAudioDone  = "response.audio.done"

	EventTypeResponseAudioTranscriptDelta = "response.audio_transcript.delta"
	EventTypeResponseAudioTranscriptDone  = "response.audio_transcript.done"

	EventTypeResponseFunctionCallArgumentsDelta = "response.function_call_arguments.delta"
	EventTypeResponseFunctionCallArgumentsDone  = "response.function_call_arguments.done"

	EventTypeRateLimitsUpdated = "rate_limits.updated"
)

// Names dispatched on the transport bus besides the per-type names
// "client.<type>" and "server.<type>".
const (
	// TransportEventClientAll receives every outgoing client event.
	TransportEventClientAll = "client.*"

	// TransportEventServerAll receives every incoming server event.
	TransportEventServerAll = "server.*"

	// TransportEventClose is dispatched when the connection drops without
	// the client asking for it.
	TransportEventClose = "close"
)

// Event sources.
const (
	SourceClient = "client"
	SourceServer = "server"
)

// ServerEvent represents a server event received from the Realtime API.
type ServerEvent struct {
	// Type is the event type.
	Type string `json:"type"`

	// EventID is the unique identifier for this event.
	EventID string `json:"event_id,omitzero"`

	// Session is set for session.created and session.updated.
	Session *SessionResource `json:"session,omitzero"`

	// Item is set for conversation.item.created and response.output_item.*.
	Item *ConversationItem `json:"item,omitzero"`

	// PreviousItemID is the item the new item follows.
	PreviousItemID string `json:"previous_item_id,omitzero"`

	// ItemID is the item an event refers to.
	ItemID string `json:"item_id,omitzero"`

	// AudioStartMs is set for speech_started.
	AudioStartMs int `json:"audio_start_ms,omitzero"`

	// AudioEndMs is set for speech_stopped and conversation.item.truncated.
	AudioEndMs int `json:"audio_end_ms,omitzero"`

	// Transcript is set for input audio transcription events.
	Transcript string `json:"transcript,omitzero"`

	// ContentIndex is the index of the content part an event refers to.
	ContentIndex int `json:"content_index,omitzero"`

	// Error is set for error and transcription failure events.
	Error *Error `json:"error,omitzero"`

	// Response is set for response.created and response.done.
	Response *ResponseResource `json:"response,omitzero"`

	// ResponseID is the response an event refers to.
	ResponseID string `json:"response_id,omitzero"`

	// OutputIndex is the index of the output item in its response.
	OutputIndex int `json:"output_index,omitzero"`

	// Part is set for response.content_part.*.
	Part *ContentPart `json:"part,omitzero"`

	// Delta is the text, transcript, arguments or base64 audio fragment of
	// a *.delta event.
	Delta string `json:"delta,omitzero"`

	// CallID, Name and Arguments are set for
	// response.function_call_arguments.done.
	CallID    string `json:"call_id,omitzero"`
	Name      string `json:"name,omitzero"`
	Arguments string `json:"arguments,omitzero"`

	// RateLimits is set for rate_limits.updated.
	RateLimits []RateLimit `json:"rate_limits,omitzero"`

	// Raw contains the original JSON message.
	Raw []byte `json:"-"`
}

// RateLimit represents rate limit information.
type RateLimit struct {
	Name         string  `json:"name"`
	Limit        int     `json:"limit"`
	Remaining    int     `json:"remaining"`
	ResetSeconds float64 `json:"reset_seconds"`
}

// TransportEvent is the payload of every transport bus dispatch.
type TransportEvent struct {
	// Time is when the event was sent or received.
	Time time.Time

	// Source is SourceClient or SourceServer. Empty for close events.
	Source string

	// Type is the protocol event type, or "close".
	Type string

	// Client is the outgoing frame, including event_id and type.
	Client map[string]any

	// Server is the decoded incoming frame.
	Server *ServerEvent

	// Err is set on close events caused by a transport failure.
	Err error
}

// ConversationEvent is the payload of every session bus dispatch.
type ConversationEvent struct {
	// Item is the item that changed, if any.
	Item *Item

	// Delta describes what changed in Item, if anything incremental did.
	Delta *Delta

	// Event is the transport event that caused the change.
	Event *TransportEvent
}

const (
	eventIDLength = 21
	idAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewEventID returns a random identifier starting with prefix, such as
// "evt_Qh3nX0cTq2Lw9aBzR". The result is at least 21 characters long.
func NewEventID(prefix string) string {
	n := max(eventIDLength-len(prefix), 8)
	var b strings.Builder
	b.Grow(len(prefix) + n)
	b.WriteString(prefix)
	for n > 0 {
		for _, c := range uuid.New() {
			if n == 0 {
				break
			}
			b.WriteByte(idAlphabet[int(c)%len(idAlphabet)])
			n--
		}
	}
	return b.String()
}
