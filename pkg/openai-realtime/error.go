package openairealtime

import (
	"errors"
	"fmt"
)

// Illegal-state errors. They are returned synchronously by the operation that
// was called in the wrong state.
var (
	// ErrAlreadyConnected is returned by Connect on a live connection.
	ErrAlreadyConnected = errors.New("openai-realtime: already connected")

	// ErrNotConnected is returned when sending without a connection.
	ErrNotConnected = errors.New("openai-realtime: not connected")

	// ErrInvalidTool is returned by AddTool for a nameless definition or a
	// nil handler.
	ErrInvalidTool = errors.New("openai-realtime: invalid tool")

	// ErrToolExists is returned by AddTool when the name is taken.
	ErrToolExists = errors.New("openai-realtime: tool already added")

	// ErrToolNotFound is returned by RemoveTool for an unknown name.
	ErrToolNotFound = errors.New("openai-realtime: tool not found")

	// ErrNotAssistantMessage is returned by CancelResponse when the target
	// item is not an assistant message.
	ErrNotAssistantMessage = errors.New("openai-realtime: item is not an assistant message")

	// ErrNoAudio is returned by CancelResponse when the target item has no
	// audio content part.
	ErrNoAudio = errors.New("openai-realtime: no audio to cancel")
)

// Protocol-ordering errors. They are returned by Conversation.ProcessEvent
// and indicate a client or server bug.
var (
	// ErrInvalidEvent is returned for events missing event_id or type.
	ErrInvalidEvent = errors.New("openai-realtime: invalid event")

	// ErrUnknownEvent is returned for event types without a processor.
	ErrUnknownEvent = errors.New("openai-realtime: unknown event type")

	// ErrItemNotFound is matched by every *ItemNotFoundError.
	ErrItemNotFound = errors.New("openai-realtime: item not found")

	// ErrResponseNotFound is matched by every *ResponseNotFoundError.
	ErrResponseNotFound = errors.New("openai-realtime: response not found")
)

// ItemNotFoundError reports an event or operation that referenced an item
// the conversation does not hold.
type ItemNotFoundError struct {
	EventType string
	ItemID    string
}

func (e *ItemNotFoundError) Error() string {
	if e.EventType == "" {
		return fmt.Sprintf("openai-realtime: could not find item %q", e.ItemID)
	}
	return fmt.Sprintf("openai-realtime: %s: item %q not found", e.EventType, e.ItemID)
}

func (e *ItemNotFoundError) Is(target error) bool {
	return target == ErrItemNotFound
}

// ResponseNotFoundError reports an event that referenced an unknown response.
type ResponseNotFoundError struct {
	EventType  string
	ResponseID string
}

func (e *ResponseNotFoundError) Error() string {
	return fmt.Sprintf("openai-realtime: %s: response %q not found", e.EventType, e.ResponseID)
}

func (e *ResponseNotFoundError) Is(target error) bool {
	return target == ErrResponseNotFound
}

// Error represents an API error from OpenAI Realtime.
type Error struct {
	// Type is the error type (e.g., "invalid_request_error").
	Type string `json:"type,omitzero"`

	// Code is the error code (e.g., "invalid_value").
	Code string `json:"code,omitzero"`

	// Message is the human-readable error message.
	Message string `json:"message,omitzero"`

	// Param is the parameter that caused the error, if applicable.
	Param string `json:"param,omitzero"`

	// EventID is the ID of the client event that caused the error.
	EventID string `json:"event_id,omitzero"`

	// HTTPStatus is the HTTP status code of a failed handshake, if any.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openai-realtime: %s: %s", e.Code, e.Message)
	}
	if e.Type != "" {
		return fmt.Sprintf("openai-realtime: %s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("openai-realtime: %s", e.Message)
}
