package openairealtime

import (
	"encoding/json"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// Models supported by OpenAI Realtime API.
const (
	ModelGPT4oRealtimePreview             = "gpt-4o-realtime-preview"
	ModelGPT4oRealtimePreview20241217     = "gpt-4o-realtime-preview-2024-12-17"
	ModelGPT4oMiniRealtimePreview         = "gpt-4o-mini-realtime-preview"
	ModelGPT4oMiniRealtimePreview20241217 = "gpt-4o-mini-realtime-preview-2024-12-17"
)

// Audio formats supported by the Realtime API.
const (
	// AudioFormatPCM16 is 16-bit PCM audio at 24kHz, mono, little-endian.
	AudioFormatPCM16 = "pcm16"
	// AudioFormatG711ULaw is G.711 μ-law audio at 8kHz.
	AudioFormatG711ULaw = "g711_ulaw"
	// AudioFormatG711ALaw is G.711 A-law audio at 8kHz.
	AudioFormatG711ALaw = "g711_alaw"
)

// Voice options for audio output.
const (
	VoiceAlloy   = "alloy"
	VoiceAsh     = "ash"
	VoiceBallad  = "ballad"
	VoiceCoral   = "coral"
	VoiceEcho    = "echo"
	VoiceSage    = "sage"
	VoiceShimmer = "shimmer"
	VoiceVerse   = "verse"
)

// VAD modes for turn detection.
const (
	VADServerVAD   = "server_vad"
	VADSemanticVAD = "semantic_vad"
)

// Modality types.
const (
	ModalityText  = "text"
	ModalityAudio = "audio"
)

// Tool choice options.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)

// Item types, roles and statuses.
const (
	ItemTypeMessage            = "message"
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"

	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusIncomplete = "incomplete"
)

// Content part types.
const (
	ContentTypeText       = "text"
	ContentTypeInputText  = "input_text"
	ContentTypeAudio      = "audio"
	ContentTypeInputAudio = "input_audio"
)

// SessionConfig is the session configuration sent with session.update.
// Session.UpdateSession merges overrides into the live config field by field:
// every non-zero field of the override replaces the current value.
type SessionConfig struct {
	// Modalities specifies the output modalities.
	Modalities []string `json:"modalities,omitzero"`

	// Instructions is the system prompt.
	Instructions string `json:"instructions"`

	// Voice is the voice ID for audio output.
	Voice string `json:"voice,omitzero"`

	// InputAudioFormat and OutputAudioFormat default to pcm16.
	InputAudioFormat  string `json:"input_audio_format,omitzero"`
	OutputAudioFormat string `json:"output_audio_format,omitzero"`

	// InputAudioTranscription enables transcription of user audio.
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitzero"`

	// TurnDetection enables server-side voice activity detection.
	TurnDetection *TurnDetection `json:"turn_detection,omitzero"`

	// TurnDetectionDisabled sends "turn_detection": null, selecting manual
	// mode where the client commits its input buffer.
	TurnDetectionDisabled bool `json:"-"`

	// Tools are sent in addition to the tools registered with AddTool.
	Tools []ToolDefinition `json:"tools,omitzero"`

	// ToolChoice is "auto", "none", "required" or a function selector
	// object.
	ToolChoice any `json:"tool_choice,omitzero"`

	// Temperature controls randomness (0.6-1.2).
	Temperature *float64 `json:"temperature,omitzero"`

	// MaxResponseOutputTokens limits the output length.
	MaxResponseOutputTokens *int `json:"max_response_output_tokens,omitzero"`
}

// DefaultSessionConfig returns the configuration a new session starts with:
// text and audio output, pcm16 both ways, and manual turn detection.
func DefaultSessionConfig() *SessionConfig {
	temperature := 0.8
	maxTokens := 4096
	return &SessionConfig{
		Modalities:              []string{ModalityText, ModalityAudio},
		Voice:                   VoiceVerse,
		InputAudioFormat:        AudioFormatPCM16,
		OutputAudioFormat:       AudioFormatPCM16,
		TurnDetectionDisabled:   true,
		ToolChoice:              ToolChoiceAuto,
		Temperature:             &temperature,
		MaxResponseOutputTokens: &maxTokens,
	}
}

// MarshalJSON writes "turn_detection": null when TurnDetectionDisabled is
// set.
func (s SessionConfig) MarshalJSON() ([]byte, error) {
	type alias SessionConfig
	data, err := json.Marshal(alias(s))
	if err != nil || !s.TurnDetectionDisabled {
		return data, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m["turn_detection"] = json.RawMessage("null")
	return json.Marshal(m)
}

// Merge copies every non-zero field of o into s. Setting TurnDetection
// re-enables VAD; setting TurnDetectionDisabled clears TurnDetection.
func (s *SessionConfig) Merge(o *SessionConfig) {
	if o == nil {
		return
	}
	if o.Modalities != nil {
		s.Modalities = slices.Clone(o.Modalities)
	}
	if o.Instructions != "" {
		s.Instructions = o.Instructions
	}
	if o.Voice != "" {
		s.Voice = o.Voice
	}
	if o.InputAudioFormat != "" {
		s.InputAudioFormat = o.InputAudioFormat
	}
	if o.OutputAudioFormat != "" {
		s.OutputAudioFormat = o.OutputAudioFormat
	}
	if o.InputAudioTranscription != nil {
		s.InputAudioTranscription = o.InputAudioTranscription
	}
	if o.TurnDetection != nil {
		s.TurnDetection = o.TurnDetection
		s.TurnDetectionDisabled = false
	}
	if o.TurnDetectionDisabled {
		s.TurnDetection = nil
		s.TurnDetectionDisabled = true
	}
	if o.Tools != nil {
		s.Tools = slices.Clone(o.Tools)
	}
	if o.ToolChoice != nil {
		s.ToolChoice = o.ToolChoice
	}
	if o.Temperature != nil {
		s.Temperature = o.Temperature
	}
	if o.MaxResponseOutputTokens != nil {
		s.MaxResponseOutputTokens = o.MaxResponseOutputTokens
	}
}

// Clone returns a copy of s that shares no slices with it.
func (s *SessionConfig) Clone() *SessionConfig {
	c := *s
	c.Modalities = slices.Clone(s.Modalities)
	c.Tools = slices.Clone(s.Tools)
	return &c
}

// TurnDetectionType returns the VAD mode, or "" in manual mode.
func (s *SessionConfig) TurnDetectionType() string {
	if s.TurnDetectionDisabled || s.TurnDetection == nil {
		return ""
	}
	return s.TurnDetection.Type
}

// TranscriptionConfig configures input audio transcription.
type TranscriptionConfig struct {
	// Model is the transcription model to use, e.g. whisper-1.
	Model string `json:"model,omitzero"`
}

// TurnDetection configures voice activity detection.
type TurnDetection struct {
	// Type is the VAD mode: "server_vad" or "semantic_vad".
	Type string `json:"type,omitzero"`

	// Threshold is the VAD sensitivity (0.0-1.0).
	Threshold float64 `json:"threshold,omitzero"`

	// PrefixPaddingMs is the padding before speech start (ms).
	PrefixPaddingMs int `json:"prefix_padding_ms,omitzero"`

	// SilenceDurationMs is the silence that ends speech (ms).
	SilenceDurationMs int `json:"silence_duration_ms,omitzero"`

	// CreateResponse makes the server respond when speech ends.
	CreateResponse *bool `json:"create_response,omitzero"`

	// InterruptResponse makes speech cancel the current response.
	InterruptResponse *bool `json:"interrupt_response,omitzero"`

	// Eagerness is "low", "medium" or "high" (semantic_vad only).
	Eagerness string `json:"eagerness,omitzero"`
}

// ToolDefinition describes a function tool available to the model.
type ToolDefinition struct {
	// Type is always "function"; it is filled in when empty.
	Type string `json:"type"`

	// Name is the function name. Required and unique per session.
	Name string `json:"name"`

	// Description tells the model when to call the function.
	Description string `json:"description,omitzero"`

	// Parameters is the JSON Schema of the argument object. When set,
	// arguments are validated against it before the handler runs.
	Parameters *jsonschema.Schema `json:"parameters,omitzero"`
}

// SessionResource represents the session state returned by the server.
type SessionResource struct {
	ID                      string               `json:"id,omitzero"`
	Object                  string               `json:"object,omitzero"`
	Model                   string               `json:"model,omitzero"`
	ExpiresAt               int64                `json:"expires_at,omitzero"`
	Modalities              []string             `json:"modalities,omitzero"`
	Instructions            string               `json:"instructions,omitzero"`
	Voice                   string               `json:"voice,omitzero"`
	InputAudioFormat        string               `json:"input_audio_format,omitzero"`
	OutputAudioFormat       string               `json:"output_audio_format,omitzero"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitzero"`
	TurnDetection           *TurnDetection       `json:"turn_detection,omitzero"`
	Tools                   []ToolDefinition     `json:"tools,omitzero"`
	ToolChoice              any                  `json:"tool_choice,omitzero"`
	Temperature             float64              `json:"temperature,omitzero"`
	MaxResponseOutputTokens any                  `json:"max_response_output_tokens,omitzero"`
}

// ConversationItem is an item as it appears on the wire.
type ConversationItem struct {
	ID        string        `json:"id,omitzero"`
	Object    string        `json:"object,omitzero"`
	Type      string        `json:"type,omitzero"`
	Status    string        `json:"status,omitzero"`
	Role      string        `json:"role,omitzero"`
	Content   []ContentPart `json:"content,omitzero"`
	CallID    string        `json:"call_id,omitzero"`
	Name      string        `json:"name,omitzero"`
	Arguments string        `json:"arguments,omitzero"`
	Output    string        `json:"output,omitzero"`
}

// ContentPart is one part of message content.
type ContentPart struct {
	// Type is "input_text", "input_audio", "item_reference", "text" or
	// "audio".
	Type       string `json:"type,omitzero"`
	Text       string `json:"text,omitzero"`
	Audio      string `json:"audio,omitzero"` // base64 encoded
	Transcript string `json:"transcript,omitzero"`
	ID         string `json:"id,omitzero"` // for item_reference

	// Samples is raw PCM16 audio for an input_audio part. It is encoded
	// into Audio before the part is sent.
	Samples []int16 `json:"-"`
}

// ResponseResource represents a response from the model.
type ResponseResource struct {
	ID            string             `json:"id,omitzero"`
	Object        string             `json:"object,omitzero"`
	Status        string             `json:"status,omitzero"` // "in_progress", "completed", "cancelled", "incomplete", "failed"
	StatusDetails *StatusDetails     `json:"status_details,omitzero"`
	Output        []ConversationItem `json:"output,omitzero"`
	Usage         *Usage             `json:"usage,omitzero"`
}

// StatusDetails contains details about the response status.
type StatusDetails struct {
	Type   string `json:"type,omitzero"`
	Reason string `json:"reason,omitzero"`
	Error  *Error `json:"error,omitzero"`
}

// Usage contains token usage information.
type Usage struct {
	TotalTokens  int `json:"total_tokens,omitzero"`
	InputTokens  int `json:"input_tokens,omitzero"`
	OutputTokens int `json:"output_tokens,omitzero"`
}
