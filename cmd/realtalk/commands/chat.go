package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/realtalk/pkg/audio/pcm"
	"github.com/haivivi/realtalk/pkg/cli"
	openairealtime "github.com/haivivi/realtalk/pkg/openai-realtime"
	"github.com/haivivi/realtalk/pkg/transcript"
)

// ChatRequest is the request file format of the chat command.
type ChatRequest struct {
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	Voice        string   `json:"voice,omitempty" yaml:"voice,omitempty"`
	Instructions string   `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Modalities   []string `json:"modalities,omitempty" yaml:"modalities,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	ServerVAD    *bool    `json:"server_vad,omitempty" yaml:"server_vad,omitempty"`

	// Messages are sent one by one, each waiting for its response, before
	// the prompt opens.
	Messages []string `json:"messages,omitempty" yaml:"messages,omitempty"`
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive realtime conversation",
	Long: `Start an interactive conversation.

Lines typed at the prompt are sent as user messages. Commands:

  /audio FILE [RATE]  append raw 16-bit mono PCM (default 24000 Hz)
  /commit             request a response for the appended audio
  /cancel             cancel the response being played
  /tools              list registered tools
  /exit               quit

With -o, assistant audio is written to the file as raw 24 kHz PCM.

Example:
  realtalk chat
  realtalk chat -f chat.yaml -o reply.pcm --record ~/realtalk-data`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cctx, err := getContext()
	if err != nil {
		return err
	}
	client, err := newClient(cctx)
	if err != nil {
		return err
	}

	var req ChatRequest
	if inputFile != "" {
		if err := cli.LoadRequest(inputFile, &req); err != nil {
			return err
		}
	}
	cfg := sessionConfig(cctx)
	if req.Voice != "" {
		cfg.Voice = req.Voice
	}
	if req.Instructions != "" {
		cfg.Instructions = req.Instructions
	}
	cfg.Modalities = req.Modalities
	cfg.Temperature = req.Temperature
	if req.ServerVAD != nil {
		if *req.ServerVAD {
			cfg.TurnDetection = &openairealtime.TurnDetection{Type: openairealtime.VADServerVAD}
		} else {
			cfg.TurnDetection = nil
			cfg.TurnDetectionDisabled = true
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	session := openairealtime.NewSession(client,
		openairealtime.WithSessionModel(req.Model),
		openairealtime.WithSessionConfig(cfg))
	for _, t := range demoTools() {
		if err := session.AddTool(t.def, t.handler); err != nil {
			return err
		}
	}

	store, files, record, err := recordStores(ctx, cctx)
	if err != nil {
		return err
	}
	if record {
		defer store.Close()
	}

	cli.PrintInfo("Connecting (%s)...", orDefault(client.Model()))
	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer session.Disconnect()
	if err := session.WaitForSessionCreated(ctx); err != nil {
		return err
	}

	if record {
		key := openairealtime.NewEventID("chat_")
		rec := transcript.NewRecorder(store, files, key)
		rec.SetModel(client.Model())
		go rec.Run(context.WithoutCancel(ctx))
		detach := rec.Attach(session)
		defer rec.Close()
		defer detach()
		cli.PrintInfo("Recording transcript %s", key)
	}

	var player *openairealtime.Player
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("create audio output: %w", err)
		}
		defer f.Close()
		player = openairealtime.NewPlayer()
		defer player.Close()
		go player.Run(ctx, pcm.NewWriter(f))
		defer player.Attach(session)()
	}

	printConversation(session)
	cli.PrintSuccess("Connected. Type a message, or /exit to quit.")

	for _, msg := range req.Messages {
		fmt.Println(cli.Default.Speaker("user"), msg)
		if err := sendText(ctx, session, msg); err != nil {
			return err
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	closed := make(chan struct{})
	session.Events().OnNext(openairealtime.SessionEventClose, func(ev *openairealtime.ConversationEvent) {
		if ev.Event != nil && ev.Event.Err != nil {
			cli.PrintError("connection closed: %v", ev.Event.Err)
		}
		close(closed)
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return errors.New("connection closed")
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(ctx, session, player, strings.TrimSpace(line))
			if err != nil {
				cli.PrintError("%v", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, s *openairealtime.Session, player *openairealtime.Player, line string) (quit bool, err error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, sendText(ctx, s, line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true, nil
	case "/tools":
		for _, name := range s.Tools() {
			fmt.Println(" ", name)
		}
		return false, nil
	case "/commit":
		return false, s.CreateResponse()
	case "/cancel":
		if player != nil {
			if id, played := player.Interrupt(); id != "" {
				return false, s.CancelResponse(id, played)
			}
		}
		return false, s.CancelResponse("", 0)
	case "/audio":
		if len(fields) < 2 {
			return false, errors.New("usage: /audio FILE [RATE]")
		}
		rate := openairealtime.DefaultSampleRate
		if len(fields) > 2 {
			if rate, err = strconv.Atoi(fields[2]); err != nil {
				return false, fmt.Errorf("bad sample rate %q", fields[2])
			}
		}
		return false, appendAudioFile(ctx, s, fields[1], rate)
	}
	return false, fmt.Errorf("unknown command %s", fields[0])
}

func appendAudioFile(ctx context.Context, s *openairealtime.Session, path string, rate int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	mic, err := openairealtime.NewMicrophone(s, openairealtime.WithSourceRate(rate))
	if err != nil {
		return err
	}
	if err := mic.Run(ctx, pcm.NewReader(f)); err != nil {
		return err
	}
	ms := openairealtime.SamplesToMs(len(s.InputAudio()), openairealtime.DefaultSampleRate)
	cli.PrintInfo("%s buffered. /commit to get a response.", cli.FormatDuration(ms))
	return nil
}

// sendText sends a user message and waits until the assistant reply item
// completes.
func sendText(ctx context.Context, s *openairealtime.Session, text string) error {
	err := s.SendUserMessageContent([]openairealtime.ContentPart{
		{Type: openairealtime.ContentTypeInputText, Text: text},
	})
	if err != nil {
		return err
	}
	for {
		ev, ok := s.Events().WaitForNext(ctx, openairealtime.SessionEventItemCompleted)
		if !ok {
			return ctx.Err()
		}
		if ev.Item != nil && ev.Item.Role == openairealtime.RoleAssistant {
			return nil
		}
	}
}

// printConversation prints deltas as they arrive and a line break when an
// assistant item completes.
func printConversation(s *openairealtime.Session) {
	st := cli.Default
	s.Events().On(openairealtime.SessionEventItemAppended, func(ev *openairealtime.ConversationEvent) {
		switch ev.Item.Type {
		case openairealtime.ItemTypeMessage:
			if ev.Item.Role == openairealtime.RoleAssistant {
				fmt.Print(st.Speaker("assistant"), " ")
			}
		case openairealtime.ItemTypeFunctionCall:
			fmt.Print(st.Tool.Render("calling "+ev.Item.Name), " ")
		}
	})
	s.Events().On(openairealtime.SessionEventUpdated, func(ev *openairealtime.ConversationEvent) {
		if ev.Delta == nil || ev.Item.Role != openairealtime.RoleAssistant {
			return
		}
		if ev.Delta.Text != "" {
			fmt.Print(ev.Delta.Text)
		}
		if ev.Delta.Transcript != "" {
			fmt.Print(ev.Delta.Transcript)
		}
	})
	s.Events().On(openairealtime.SessionEventItemCompleted, func(ev *openairealtime.ConversationEvent) {
		switch {
		case ev.Item.Role == openairealtime.RoleAssistant:
			fmt.Println()
		case ev.Item.Type == openairealtime.ItemTypeFunctionCall && ev.Item.Formatted.Tool != nil:
			fmt.Println(st.Dim.Render(ev.Item.Formatted.Tool.Arguments))
		case ev.Item.Role == openairealtime.RoleUser && ev.Item.Formatted.Transcript != "":
			fmt.Println(st.Speaker("user"), ev.Item.Formatted.Transcript)
		}
	})
	s.Events().On(openairealtime.SessionEventInterrupted, func(ev *openairealtime.ConversationEvent) {
		if ev.Item != nil {
			fmt.Println(st.Dim.Render(" [interrupted]"))
		}
	})
}
