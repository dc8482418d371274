package openairealtime

import (
	"errors"
	"slices"
	"testing"
)

func serverEvent(typ string) *ServerEvent {
	return &ServerEvent{Type: typ, EventID: NewEventID("event_")}
}

func itemCreated(item ConversationItem) *ServerEvent {
	ev := serverEvent(EventTypeConversationItemCreated)
	ev.Item = &item
	return ev
}

func mustProcess(t *testing.T, c *Conversation, ev *ServerEvent, input []int16) (*Item, *Delta) {
	t.Helper()
	item, delta, err := c.ProcessEvent(ev, input)
	if err != nil {
		t.Fatalf("ProcessEvent(%s) error: %v", ev.Type, err)
	}
	return item, delta
}

func assistantMessage(id string) ConversationItem {
	return ConversationItem{
		ID:      id,
		Type:    ItemTypeMessage,
		Role:    RoleAssistant,
		Content: []ContentPart{{Type: ContentTypeAudio}},
	}
}

func TestConversationValidation(t *testing.T) {
	c := NewConversation(0)
	tests := []struct {
		name string
		ev   *ServerEvent
		want error
	}{
		{"nil", nil, ErrInvalidEvent},
		{"missing event_id", &ServerEvent{Type: EventTypeResponseCreated}, ErrInvalidEvent},
		{"missing type", &ServerEvent{EventID: "event_1"}, ErrInvalidEvent},
		{"unknown type", &ServerEvent{EventID: "event_1", Type: "response.magic"}, ErrUnknownEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := c.ProcessEvent(tt.ev, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ProcessEvent() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConversationItemCreatedIdempotent(t *testing.T) {
	c := NewConversation(DefaultSampleRate)
	first, _ := mustProcess(t, c, itemCreated(assistantMessage("item1")), nil)
	second, delta := mustProcess(t, c, itemCreated(assistantMessage("item1")), nil)

	if first != second {
		t.Fatalf("duplicate create returned a different item")
	}
	if delta != nil {
		t.Fatalf("delta = %+v, want nil", delta)
	}
	if got := len(c.Items()); got != 1 {
		t.Fatalf("len(Items()) = %d, want 1", got)
	}
	if c.Item("item1") != first {
		t.Fatalf("Item(item1) is not the created item")
	}
}

func TestConversationItemCreatedByType(t *testing.T) {
	c := NewConversation(DefaultSampleRate)
	c.QueueInputAudio([]int16{7, 8, 9})

	user, _ := mustProcess(t, c, itemCreated(ConversationItem{
		ID:   "u1",
		Type: ItemTypeMessage,
		Role: RoleUser,
		Content: []ContentPart{
			{Type: ContentTypeInputText, Text: "hello "},
			{Type: ContentTypeInputAudio},
			{Type: ContentTypeInputText, Text: "there"},
		},
	}), nil)
	if user.Status != StatusCompleted {
		t.Fatalf("user status = %q, want %q", user.Status, StatusCompleted)
	}
	if user.Formatted.Text != "hello there" {
		t.Fatalf("user text = %q, want %q", user.Formatted.Text, "hello there")
	}
	if !slices.Equal(user.Formatted.Audio, []int16{7, 8, 9}) {
		t.Fatalf("user audio = %v, want [7 8 9]", user.Formatted.Audio)
	}
	if c.QueuedInputAudio() != nil {
		t.Fatalf("queued input audio not consumed")
	}

	asst, _ := mustProcess(t, c, itemCreated(assistantMessage("a1")), nil)
	if asst.Status != StatusInProgress {
		t.Fatalf("assistant status = %q, want %q", asst.Status, StatusInProgress)
	}

	call, _ := mustProcess(t, c, itemCreated(ConversationItem{
		ID: "f1", Type: ItemTypeFunctionCall, Name: "add", CallID: "call_1",
	}), nil)
	if call.Formatted.Tool == nil || call.Formatted.Tool.Name != "add" || call.Formatted.Tool.CallID != "call_1" {
		t.Fatalf("function call tool = %+v", call.Formatted.Tool)
	}
	if call.Status != StatusInProgress {
		t.Fatalf("function call status = %q, want %q", call.Status, StatusInProgress)
	}

	out, _ := mustProcess(t, c, itemCreated(ConversationItem{
		ID: "o1", Type: ItemTypeFunctionCallOutput, CallID: "call_1", Output: `{"sum":3}`,
	}), nil)
	if out.Status != StatusCompleted || out.Formatted.Output != `{"sum":3}` {
		t.Fatalf("output item = %+v", out)
	}

	ids := make([]string, 0, 4)
	for _, it := range c.Items() {
		ids = append(ids, it.ID)
	}
	if !slices.Equal(ids, []string{"u1", "a1", "f1", "o1"}) {
		t.Fatalf("Items() order = %v", ids)
	}
}

func TestConversationTextDeltaConcatenation(t *testing.T) {
	apply := func(deltas ...string) string {
		c := NewConversation(DefaultSampleRate)
		msg := assistantMessage("item1")
		msg.Content = []ContentPart{{Type: ContentTypeText}}
		mustProcess(t, c, itemCreated(msg), nil)
		for _, d := range deltas {
			ev := serverEvent(EventTypeResponseTextDelta)
			ev.ItemID = "item1"
			ev.Delta = d
			_, delta := mustProcess(t, c, ev, nil)
			if delta == nil || delta.Text != d {
				t.Fatalf("delta = %+v, want text %q", delta, d)
			}
		}
		it := c.Item("item1")
		if it.Content[0].Text != it.Formatted.Text {
			t.Fatalf("part text %q != formatted text %q", it.Content[0].Text, it.Formatted.Text)
		}
		return it.Formatted.Text
	}

	split := apply("Hello", " world")
	whole := apply("Hello world")
	if split != "Hello world" || split != whole {
		t.Fatalf("split = %q, whole = %q, want %q", split, whole, "Hello world")
	}
}

func TestConversationTruncate(t *testing.T) {
	c := NewConversation(24000)
	mustProcess(t, c, itemCreated(assistantMessage("item1")), nil)

	ev := serverEvent(EventTypeResponseAudioDelta)
	ev.ItemID = "item1"
	ev.Delta = EncodeAudio(make([]int16, 48000))
	_, delta := mustProcess(t, c, ev, nil)
	if len(delta.Audio) != 48000 {
		t.Fatalf("len(delta.Audio) = %d, want 48000", len(delta.Audio))
	}

	tr := serverEvent(EventTypeResponseAudioTranscriptDelta)
	tr.ItemID = "item1"
	tr.Delta = "spoken words"
	mustProcess(t, c, tr, nil)

	trunc := serverEvent(EventTypeConversationItemTruncated)
	trunc.ItemID = "item1"
	trunc.AudioEndMs = 1000
	item, _ := mustProcess(t, c, trunc, nil)

	if len(item.Formatted.Audio) != 24000 {
		t.Fatalf("len(audio) = %d, want 24000", len(item.Formatted.Audio))
	}
	if item.Formatted.Transcript != "" {
		t.Fatalf("transcript = %q, want empty", item.Formatted.Transcript)
	}
}

func TestConversationTruncatePastEnd(t *testing.T) {
	c := NewConversation(24000)
	mustProcess(t, c, itemCreated(assistantMessage("item1")), nil)
	ev := serverEvent(EventTypeResponseAudioDelta)
	ev.ItemID = "item1"
	ev.Delta = EncodeAudio([]int16{1, 2, 3})
	mustProcess(t, c, ev, nil)

	trunc := serverEvent(EventTypeConversationItemTruncated)
	trunc.ItemID = "item1"
	trunc.AudioEndMs = 5000
	item, _ := mustProcess(t, c, trunc, nil)
	if !slices.Equal(item.Formatted.Audio, []int16{1, 2, 3}) {
		t.Fatalf("audio = %v, want [1 2 3]", item.Formatted.Audio)
	}
}

func TestConversationSpeechBeforeCreate(t *testing.T) {
	c := NewConversation(1000) // one sample per millisecond
	input := make([]int16, 100)
	for i := range input {
		input[i] = int16(i)
	}

	started := serverEvent(EventTypeInputAudioBufferSpeechStarted)
	started.ItemID = "X"
	started.AudioStartMs = 10
	if item, _ := mustProcess(t, c, started, input); item != nil {
		t.Fatalf("speech_started returned item %v", item.ID)
	}

	stopped := serverEvent(EventTypeInputAudioBufferSpeechStopped)
	stopped.ItemID = "X"
	stopped.AudioEndMs = 20
	mustProcess(t, c, stopped, input)

	item, _ := mustProcess(t, c, itemCreated(ConversationItem{
		ID: "X", Type: ItemTypeMessage, Role: RoleAssistant,
	}), nil)
	want := input[10:20]
	if !slices.Equal(item.Formatted.Audio, want) {
		t.Fatalf("audio = %v, want %v", item.Formatted.Audio, want)
	}

	// The queue entry is consumed.
	again, _ := mustProcess(t, c, itemCreated(ConversationItem{
		ID: "Y", Type: ItemTypeMessage, Role: RoleAssistant,
	}), nil)
	if again.Formatted.Audio != nil {
		t.Fatalf("unrelated item got audio %v", again.Formatted.Audio)
	}
}

func TestConversationSpeechStoppedClampsToBuffer(t *testing.T) {
	c := NewConversation(1000)
	stopped := serverEvent(EventTypeInputAudioBufferSpeechStopped)
	stopped.ItemID = "X"
	stopped.AudioEndMs = 500
	mustProcess(t, c, stopped, []int16{1, 2, 3})

	item, _ := mustProcess(t, c, itemCreated(ConversationItem{ID: "X", Type: ItemTypeMessage, Role: RoleAssistant}), nil)
	if len(item.Formatted.Audio) != 0 {
		t.Fatalf("audio = %v, want empty", item.Formatted.Audio)
	}
}

func TestConversationTranscriptBeforeCreate(t *testing.T) {
	c := NewConversation(DefaultSampleRate)
	ev := serverEvent(EventTypeConversationItemInputAudioTranscriptionCompleted)
	ev.ItemID = "u1"
	ev.Transcript = ""
	if item, _ := mustProcess(t, c, ev, nil); item != nil {
		t.Fatalf("transcription before create returned item")
	}

	item, _ := mustProcess(t, c, itemCreated(ConversationItem{
		ID: "u1", Type: ItemTypeMessage, Role: RoleUser,
		Content: []ContentPart{{Type: ContentTypeInputAudio}},
	}), nil)
	if item.Formatted.Transcript != " " {
		t.Fatalf("transcript = %q, want single space", item.Formatted.Transcript)
	}
	if item.Content[0].Transcript != " " {
		t.Fatalf("Content[0].Transcript = %q, want single space", item.Content[0].Transcript)
	}
}

func TestConversationTranscriptAfterCreate(t *testing.T) {
	c := NewConversation(DefaultSampleRate)
	mustProcess(t, c, itemCreated(ConversationItem{
		ID: "u1", Type: ItemTypeMessage, Role: RoleUser,
		Content: []ContentPart{{Type: ContentTypeInputAudio}},
	}), nil)

	ev := serverEvent(EventTypeConversationItemInputAudioTranscriptionCompleted)
	ev.ItemID = "u1"
	ev.Transcript = "what time is it"
	item, delta := mustProcess(t, c, ev, nil)
	if item.Content[0].Transcript != "what time is it" || item.Formatted.Transcript != "what time is it" {
		t.Fatalf("item = %+v", item)
	}
	if delta == nil || delta.Transcript != "what time is it" {
		t.Fatalf("delta = %+v", delta)
	}
}

func TestConversationUnknownItem(t *testing.T) {
	c := NewConversation(DefaultSampleRate)
	msg := assistantMessage("item1")
	msg.Content = []ContentPart{{Type: ContentTypeText, Text: "keep"}}
	mustProcess(t, c, itemCreated(msg), nil)

	types := []string{
		EventTypeResponseTextDelta,
		EventTypeResponseAudioDelta,
		EventTypeResponseAudioTranscriptDelta,
		EventTypeResponseFunctionCallArgumentsDelta,
		EventTypeResponseContentPartAdded,
		EventTypeConversationItemTruncated,
		EventTypeConversationItemDeleted,
	}
	for _, typ := range types {
		t.Run(typ, func(t *testing.T) {
			ev := serverEvent(typ)
			ev.ItemID = "ghost"
			ev.Delta = "x"
			ev.Part = &ContentPart{Type: ContentTypeText}
			_, _, err := c.ProcessEvent(ev, nil)
			if !errors.Is(err, ErrItemNotFound) {
				t.Fatalf("error = %v, want ErrItemNotFound", err)
			}
			var nf *ItemNotFoundError
			if !errors.As(err, &nf) || nf.ItemID != "ghost" || nf.EventType != typ {
				t.Fatalf("error = %#v, want ItemNotFoundError for ghost", err)
			}
		})
	}

	it := c.Item("item1")
	if it.Formatted.Text != "keep" || len(it.Content) != 1 || it.Content[0].Text != "keep" {
		t.Fatalf("existing item mutated: %+v", it)
	}
}

func TestConversationResponses(t *testing.T) {
	c := NewConversation(DefaultSampleRate)

	added := serverEvent(EventTypeResponseOutputItemAdded)
	added.ResponseID = "resp1"
	added.Item = &ConversationItem{ID: "item1"}
	if _, _, err := c.ProcessEvent(added, nil); !errors.Is(err, ErrResponseNotFound) {
		t.Fatalf("output_item.added error = %v, want ErrResponseNotFound", err)
	}

	created := serverEvent(EventTypeResponseCreated)
	created.Response = &ResponseResource{ID: "resp1", Status: StatusInProgress}
	mustProcess(t, c, created, nil)
	mustProcess(t, c, created, nil)
	if got := len(c.Responses()); got != 1 {
		t.Fatalf("len(Responses()) = %d, want 1", got)
	}

	mustProcess(t, c, added, nil)
	if got := c.Response("resp1").Output; !slices.Equal(got, []string{"item1"}) {
		t.Fatalf("response output = %v, want [item1]", got)
	}
}

func TestConversationOutputItemDone(t *testing.T) {
	c := NewConversation(DefaultSampleRate)
	done := serverEvent(EventTypeResponseOutputItemDone)
	done.Item = &ConversationItem{ID: "item1", Status: StatusCompleted}
	if _, _, err := c.ProcessEvent(done, nil); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("error = %v, want ErrItemNotFound", err)
	}

	mustProcess(t, c, itemCreated(assistantMessage("item1")), nil)
	item, _ := mustProcess(t, c, done, nil)
	if item.Status != StatusCompleted {
		t.Fatalf("status = %q, want %q", item.Status, StatusCompleted)
	}
}

func TestConversationContentPartAndArguments(t *testing.T) {
	c := NewConversation(DefaultSampleRate)
	mustProcess(t, c, itemCreated(ConversationItem{ID: "f1", Type: ItemTypeFunctionCall, Name: "add", CallID: "c1"}), nil)
	for _, d := range []string{`{"a":`, `1,"b":2}`} {
		ev := serverEvent(EventTypeResponseFunctionCallArgumentsDelta)
		ev.ItemID = "f1"
		ev.Delta = d
		mustProcess(t, c, ev, nil)
	}
	item := c.Item("f1")
	if item.Arguments != `{"a":1,"b":2}` || item.Formatted.Tool.Arguments != `{"a":1,"b":2}` {
		t.Fatalf("arguments = %q / %q", item.Arguments, item.Formatted.Tool.Arguments)
	}

	mustProcess(t, c, itemCreated(ConversationItem{ID: "a1", Type: ItemTypeMessage, Role: RoleAssistant}), nil)
	part := serverEvent(EventTypeResponseContentPartAdded)
	part.ItemID = "a1"
	part.Part = &ContentPart{Type: ContentTypeAudio}
	mustProcess(t, c, part, nil)

	tr := serverEvent(EventTypeResponseAudioTranscriptDelta)
	tr.ItemID = "a1"
	tr.ContentIndex = 3
	tr.Delta = "x"
	if _, _, err := c.ProcessEvent(tr, nil); err == nil {
		t.Fatalf("out of range content index: want error")
	}
}

func TestConversationDelete(t *testing.T) {
	c := NewConversation(DefaultSampleRate)
	for _, id := range []string{"a", "b", "c"} {
		mustProcess(t, c, itemCreated(assistantMessage(id)), nil)
	}
	ev := serverEvent(EventTypeConversationItemDeleted)
	ev.ItemID = "b"
	mustProcess(t, c, ev, nil)

	if c.Item("b") != nil {
		t.Fatalf("Item(b) still indexed")
	}
	var ids []string
	for _, it := range c.Items() {
		ids = append(ids, it.ID)
	}
	if !slices.Equal(ids, []string{"a", "c"}) {
		t.Fatalf("Items() = %v, want [a c]", ids)
	}

	c.Clear()
	if len(c.Items()) != 0 || len(c.Responses()) != 0 {
		t.Fatalf("Clear left state behind")
	}
}
