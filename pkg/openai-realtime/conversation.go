package openairealtime

import (
	"fmt"
	"slices"
	"sync"
)

// processor applies one server event type to the conversation. It runs with
// c.mu held.
type processor func(c *Conversation, ev *ServerEvent, inputAudio []int16) (*Item, *Delta, error)

// processors maps every server event type the conversation understands to its
// processor. Types missing from the table are rejected with ErrUnknownEvent.
var processors = map[string]processor{
	EventTypeConversationItemCreated:                          (*Conversation).itemCreated,
	EventTypeConversationItemTruncated:                        (*Conversation).itemTruncated,
	EventTypeConversationItemDeleted:                          (*Conversation).itemDeleted,
	EventTypeConversationItemInputAudioTranscriptionCompleted: (*Conversation).transcriptionCompleted,
	EventTypeInputAudioBufferSpeechStarted:                    (*Conversation).speechStarted,
	EventTypeInputAudioBufferSpeechStopped:                    (*Conversation).speechStopped,
	EventTypeResponseCreated:                                  (*Conversation).responseCreated,
	EventTypeResponseOutputItemAdded:                          (*Conversation).outputItemAdded,
	EventTypeResponseOutputItemDone:                           (*Conversation).outputItemDone,
	EventTypeResponseContentPartAdded:                         (*Conversation).contentPartAdded,
	EventTypeResponseAudioTranscriptDelta:                     (*Conversation).audioTranscriptDelta,
	EventTypeResponseAudioDelta:                               (*Conversation).audioDelta,
	EventTypeResponseTextDelta:                                (*Conversation).textDelta,
	EventTypeResponseFunctionCallArgumentsDelta:               (*Conversation).argumentsDelta,
}

// queuedSpeech is speech detected for an item the server has not created yet.
type queuedSpeech struct {
	startMs int
	endMs   int
	audio   []int16
}

// Conversation is the client-side state of a realtime conversation. It
// applies server events to items and responses and never talks to the
// transport itself. It is safe for concurrent use.
type Conversation struct {
	sampleRate int

	mu           sync.Mutex
	items        map[string]*Item
	itemList     []*Item
	responses    map[string]*Response
	responseList []*Response

	queuedSpeech      map[string]*queuedSpeech
	queuedTranscripts map[string]string
	queuedInputAudio  []int16
}

// NewConversation creates an empty conversation. A sampleRate <= 0 selects
// DefaultSampleRate.
func NewConversation(sampleRate int) *Conversation {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	c := &Conversation{sampleRate: sampleRate}
	c.clear()
	return c
}

// SampleRate returns the rate used for millisecond to sample conversions.
func (c *Conversation) SampleRate() int {
	return c.sampleRate
}

// Clear drops all items, responses and queued data.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear()
}

func (c *Conversation) clear() {
	c.items = make(map[string]*Item)
	c.itemList = nil
	c.responses = make(map[string]*Response)
	c.responseList = nil
	c.queuedSpeech = make(map[string]*queuedSpeech)
	c.queuedTranscripts = make(map[string]string)
	c.queuedInputAudio = nil
}

// QueueInputAudio stores committed input audio. The next user message
// created by the server takes it as its audio.
func (c *Conversation) QueueInputAudio(samples []int16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queuedInputAudio = slices.Clone(samples)
}

// QueuedInputAudio returns a copy of the pending input audio, or nil.
func (c *Conversation) QueuedInputAudio() []int16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.queuedInputAudio)
}

// Item returns the item with the given id, or nil.
func (c *Conversation) Item(id string) *Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[id]
}

// Snapshot returns a deep copy of the item with the given id, or nil. Unlike
// Item it is safe to read while events are being processed.
func (c *Conversation) Snapshot(id string) *Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[id]; ok {
		return item.Clone()
	}
	return nil
}

// Items returns the items in creation order.
func (c *Conversation) Items() []*Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.itemList)
}

// Response returns the response with the given id, or nil.
func (c *Conversation) Response(id string) *Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responses[id]
}

// Responses returns the responses in creation order.
func (c *Conversation) Responses() []*Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.responseList)
}

// ProcessEvent applies a server event. It returns the affected item, if any,
// and a delta describing an incremental change, if any. inputAudio is the
// client's mirror of the input audio buffer and is only read for
// input_audio_buffer.speech_stopped.
//
// Errors are protocol-ordering violations: a missing event_id or type, an
// unknown event type, or a reference to an item or response that does not
// exist. The conversation is left unchanged when an error is returned.
func (c *Conversation) ProcessEvent(ev *ServerEvent, inputAudio []int16) (*Item, *Delta, error) {
	if ev == nil {
		return nil, nil, fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if ev.EventID == "" {
		return nil, nil, fmt.Errorf("%w: missing event_id (type %q)", ErrInvalidEvent, ev.Type)
	}
	if ev.Type == "" {
		return nil, nil, fmt.Errorf("%w: missing type (event_id %q)", ErrInvalidEvent, ev.EventID)
	}
	proc, ok := processors[ev.Type]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return proc(c, ev, inputAudio)
}

func (c *Conversation) lookup(ev *ServerEvent, id string) (*Item, error) {
	item, ok := c.items[id]
	if !ok {
		return nil, &ItemNotFoundError{EventType: ev.Type, ItemID: id}
	}
	return item, nil
}

func (c *Conversation) part(ev *ServerEvent, item *Item) (*ContentPart, error) {
	if ev.ContentIndex < 0 || ev.ContentIndex >= len(item.Content) {
		return nil, fmt.Errorf("openai-realtime: %s: item %q has no content part %d",
			ev.Type, item.ID, ev.ContentIndex)
	}
	return &item.Content[ev.ContentIndex], nil
}

func (c *Conversation) itemCreated(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	if ev.Item == nil {
		return nil, nil, fmt.Errorf("openai-realtime: %s: missing item", ev.Type)
	}
	if existing, ok := c.items[ev.Item.ID]; ok {
		return existing, nil, nil
	}

	item := &Item{ConversationItem: *ev.Item}
	item.Content = slices.Clone(ev.Item.Content)

	if q, ok := c.queuedSpeech[item.ID]; ok {
		item.Formatted.Audio = q.audio
		delete(c.queuedSpeech, item.ID)
	}
	for _, p := range item.Content {
		if p.Type == ContentTypeText || p.Type == ContentTypeInputText {
			item.Formatted.Text += p.Text
		}
	}
	if t, ok := c.queuedTranscripts[item.ID]; ok {
		item.Formatted.Transcript = t
		if len(item.Content) > 0 {
			item.Content[0].Transcript = t
		}
		delete(c.queuedTranscripts, item.ID)
	}

	switch item.Type {
	case ItemTypeMessage:
		if item.Role == RoleUser {
			item.Status = StatusCompleted
			if c.queuedInputAudio != nil {
				item.Formatted.Audio = c.queuedInputAudio
				c.queuedInputAudio = nil
			}
		} else {
			item.Status = StatusInProgress
		}
	case ItemTypeFunctionCall:
		item.Formatted.Tool = &ToolCall{
			Type:   "function",
			Name:   item.Name,
			CallID: item.CallID,
		}
		item.Status = StatusInProgress
	case ItemTypeFunctionCallOutput:
		item.Status = StatusCompleted
		item.Formatted.Output = item.Output
	}

	c.items[item.ID] = item
	c.itemList = append(c.itemList, item)
	return item, nil, nil
}

func (c *Conversation) itemTruncated(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	item, err := c.lookup(ev, ev.ItemID)
	if err != nil {
		return nil, nil, err
	}
	end := min(MsToSamples(ev.AudioEndMs, c.sampleRate), len(item.Formatted.Audio))
	item.Formatted.Audio = item.Formatted.Audio[:end:end]
	item.Formatted.Transcript = ""
	return item, nil, nil
}

func (c *Conversation) itemDeleted(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	item, err := c.lookup(ev, ev.ItemID)
	if err != nil {
		return nil, nil, err
	}
	delete(c.items, item.ID)
	c.itemList = slices.DeleteFunc(c.itemList, func(it *Item) bool { return it == item })
	return item, nil, nil
}

func (c *Conversation) transcriptionCompleted(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	transcript := ev.Transcript
	if transcript == "" {
		transcript = " "
	}
	item, ok := c.items[ev.ItemID]
	if !ok {
		c.queuedTranscripts[ev.ItemID] = transcript
		return nil, nil, nil
	}
	part, err := c.part(ev, item)
	if err != nil {
		return nil, nil, err
	}
	part.Transcript = ev.Transcript
	item.Formatted.Transcript = transcript
	return item, &Delta{Transcript: ev.Transcript}, nil
}

func (c *Conversation) speechStarted(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	c.queuedSpeech[ev.ItemID] = &queuedSpeech{startMs: ev.AudioStartMs}
	return nil, nil, nil
}

func (c *Conversation) speechStopped(ev *ServerEvent, inputAudio []int16) (*Item, *Delta, error) {
	q, ok := c.queuedSpeech[ev.ItemID]
	if !ok {
		q = &queuedSpeech{startMs: ev.AudioEndMs}
		c.queuedSpeech[ev.ItemID] = q
	}
	q.endMs = ev.AudioEndMs
	if len(inputAudio) > 0 {
		start := min(MsToSamples(q.startMs, c.sampleRate), len(inputAudio))
		end := min(max(MsToSamples(q.endMs, c.sampleRate), start), len(inputAudio))
		q.audio = slices.Clone(inputAudio[start:end])
	}

	// The server normally stops speech before it creates the item. If the
	// item already exists, hand over the audio now.
	if item, ok := c.items[ev.ItemID]; ok {
		if item.Formatted.Audio == nil {
			item.Formatted.Audio = q.audio
		}
		delete(c.queuedSpeech, ev.ItemID)
		return item, nil, nil
	}
	return nil, nil, nil
}

func (c *Conversation) responseCreated(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	if ev.Response == nil {
		return nil, nil, fmt.Errorf("openai-realtime: %s: missing response", ev.Type)
	}
	if _, ok := c.responses[ev.Response.ID]; !ok {
		r := &Response{ID: ev.Response.ID, Status: ev.Response.Status}
		c.responses[r.ID] = r
		c.responseList = append(c.responseList, r)
	}
	return nil, nil, nil
}

func (c *Conversation) outputItemAdded(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	r, ok := c.responses[ev.ResponseID]
	if !ok {
		return nil, nil, &ResponseNotFoundError{EventType: ev.Type, ResponseID: ev.ResponseID}
	}
	if ev.Item == nil {
		return nil, nil, fmt.Errorf("openai-realtime: %s: missing item", ev.Type)
	}
	r.Output = append(r.Output, ev.Item.ID)
	return nil, nil, nil
}

func (c *Conversation) outputItemDone(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	if ev.Item == nil {
		return nil, nil, fmt.Errorf("openai-realtime: %s: missing item", ev.Type)
	}
	item, err := c.lookup(ev, ev.Item.ID)
	if err != nil {
		return nil, nil, err
	}
	item.Status = ev.Item.Status
	return item, nil, nil
}

func (c *Conversation) contentPartAdded(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	item, err := c.lookup(ev, ev.ItemID)
	if err != nil {
		return nil, nil, err
	}
	if ev.Part == nil {
		return nil, nil, fmt.Errorf("openai-realtime: %s: missing part", ev.Type)
	}
	item.Content = append(item.Content, *ev.Part)
	return item, nil, nil
}

func (c *Conversation) audioTranscriptDelta(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	item, err := c.lookup(ev, ev.ItemID)
	if err != nil {
		return nil, nil, err
	}
	part, err := c.part(ev, item)
	if err != nil {
		return nil, nil, err
	}
	part.Transcript += ev.Delta
	item.Formatted.Transcript += ev.Delta
	return item, &Delta{Transcript: ev.Delta}, nil
}

func (c *Conversation) audioDelta(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	item, err := c.lookup(ev, ev.ItemID)
	if err != nil {
		return nil, nil, err
	}
	samples, err := DecodeAudio(ev.Delta)
	if err != nil {
		return nil, nil, fmt.Errorf("openai-realtime: %s: decode audio: %w", ev.Type, err)
	}
	item.Formatted.Audio = append(item.Formatted.Audio, samples...)
	return item, &Delta{Audio: samples}, nil
}

func (c *Conversation) textDelta(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	item, err := c.lookup(ev, ev.ItemID)
	if err != nil {
		return nil, nil, err
	}
	part, err := c.part(ev, item)
	if err != nil {
		return nil, nil, err
	}
	part.Text += ev.Delta
	item.Formatted.Text += ev.Delta
	return item, &Delta{Text: ev.Delta}, nil
}

func (c *Conversation) argumentsDelta(ev *ServerEvent, _ []int16) (*Item, *Delta, error) {
	item, err := c.lookup(ev, ev.ItemID)
	if err != nil {
		return nil, nil, err
	}
	item.Arguments += ev.Delta
	if item.Formatted.Tool != nil {
		item.Formatted.Tool.Arguments += ev.Delta
	}
	return item, &Delta{Arguments: ev.Delta}, nil
}
