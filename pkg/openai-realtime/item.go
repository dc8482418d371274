package openairealtime

import "slices"

// Item is a conversation item together with its client-side projection.
// Items returned by Conversation are owned by it and must be treated as
// read-only.
type Item struct {
	ConversationItem

	// Formatted aggregates the content parts for display and playback.
	Formatted Formatted `json:"formatted"`
}

// Formatted is the derived view of an item that is never sent over the wire.
type Formatted struct {
	// Text concatenates every text and input_text part.
	Text string `json:"text"`

	// Transcript accumulates audio transcript deltas.
	Transcript string `json:"transcript"`

	// Audio holds decoded PCM16 samples for the item.
	Audio []int16 `json:"audio,omitzero"`

	// Tool is set for function_call items.
	Tool *ToolCall `json:"tool,omitzero"`

	// Output is set for function_call_output items.
	Output string `json:"output,omitzero"`

	// File is a reference to the item's audio once it has been stored
	// elsewhere, e.g. by a transcript recorder.
	File string `json:"file,omitzero"`
}

// ToolCall is the accumulated state of a function call.
type ToolCall struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	CallID    string `json:"call_id"`
	Arguments string `json:"arguments"`
}

// Delta describes the incremental change an event made to an item.
type Delta struct {
	Text       string  `json:"text,omitzero"`
	Transcript string  `json:"transcript,omitzero"`
	Audio      []int16 `json:"audio,omitzero"`
	Arguments  string  `json:"arguments,omitzero"`
}

// Response is a server-side generation pass and the items it produced.
type Response struct {
	ID     string   `json:"id"`
	Status string   `json:"status,omitzero"`
	Output []string `json:"output"`
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	c := *it
	c.Content = slices.Clone(it.Content)
	c.Formatted.Audio = slices.Clone(it.Formatted.Audio)
	if it.Formatted.Tool != nil {
		t := *it.Formatted.Tool
		c.Formatted.Tool = &t
	}
	return &c
}

// AudioPartIndex returns the index of the first audio content part, or -1.
func (it *Item) AudioPartIndex() int {
	return slices.IndexFunc(it.Content, func(p ContentPart) bool {
		return p.Type == ContentTypeAudio
	})
}

// IsCompletedFunctionCall reports whether the item is a finished tool call
// ready to be dispatched.
func (it *Item) IsCompletedFunctionCall() bool {
	return it.Type == ItemTypeFunctionCall && it.Status == StatusCompleted && it.Formatted.Tool != nil
}
