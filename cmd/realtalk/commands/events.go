package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/haivivi/realtalk/pkg/cli"
	openairealtime "github.com/haivivi/realtalk/pkg/openai-realtime"
)

var (
	eventsJQ     string
	eventsClient bool
	eventsOnce   bool
	eventsAudio  bool
)

var eventsCmd = &cobra.Command{
	Use:   "events [message]",
	Short: "Stream realtime protocol events",
	Long: `Connect, optionally send a user message, and print every server event as
one JSON line. --jq filters each event through a jq expression.

Example:
  realtalk events "tell me a joke" --once
  realtalk events "hi" --jq 'select(.type | startswith("response.")) | .type'
  realtalk events --client --jq '{dir: .direction, type}'`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsJQ, "jq", "", "jq filter applied to each event")
	eventsCmd.Flags().BoolVar(&eventsClient, "client", false, "include events sent by the client")
	eventsCmd.Flags().BoolVar(&eventsOnce, "once", false, "exit after the first response.done")
	eventsCmd.Flags().BoolVar(&eventsAudio, "audio", false, "print base64 audio payloads in full")
}

// eventFilter applies a compiled jq program to decoded events.
type eventFilter struct {
	code *gojq.Code
}

func newEventFilter(expr string) (*eventFilter, error) {
	if expr == "" {
		return &eventFilter{}, nil
	}
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse jq: %w", err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile jq: %w", err)
	}
	return &eventFilter{code: code}, nil
}

// apply returns the filter outputs for v, or v itself without a filter.
func (f *eventFilter) apply(ctx context.Context, v map[string]any) ([]any, error) {
	if f.code == nil {
		return []any{v}, nil
	}
	var out []any
	iter := f.code.RunWithContext(ctx, v)
	for {
		r, ok := iter.Next()
		if !ok {
			return out, nil
		}
		if err, ok := r.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				return out, nil
			}
			return out, err
		}
		out = append(out, r)
	}
}

// eventObject decodes a transport event into a jq input value, adding its
// direction ("client" or "server").
func eventObject(ev *openairealtime.TransportEvent, elideAudio bool) (map[string]any, error) {
	var m map[string]any
	switch {
	case ev.Server != nil:
		if err := json.Unmarshal(ev.Server.Raw, &m); err != nil {
			return nil, err
		}
	case ev.Client != nil:
		// Round-trip to turn typed values into plain JSON values.
		b, err := json.Marshal(ev.Client)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
	default:
		m = map[string]any{"type": ev.Type}
	}
	m["direction"] = ev.Source
	if elideAudio {
		for _, k := range []string{"audio", "delta"} {
			if s, ok := m[k].(string); ok && len(s) > 64 && strings.Contains(ev.Type, "audio") && !strings.Contains(ev.Type, "transcript") {
				m[k] = fmt.Sprintf("<%d bytes base64>", len(s))
			}
		}
	}
	return m, nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	filter, err := newEventFilter(eventsJQ)
	if err != nil {
		return err
	}
	cctx, err := getContext()
	if err != nil {
		return err
	}
	client, err := newClient(cctx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	session := openairealtime.NewSession(client, openairealtime.WithSessionConfig(sessionConfig(cctx)))
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	session.Events().On(openairealtime.SessionEventRealtime, func(ce *openairealtime.ConversationEvent) {
		ev := ce.Event
		if ev.Source == openairealtime.SourceClient && !eventsClient {
			return
		}
		obj, err := eventObject(ev, !eventsAudio)
		if err != nil {
			finish(err)
			return
		}
		results, err := filter.apply(ctx, obj)
		if err != nil {
			finish(fmt.Errorf("jq: %w", err))
			return
		}
		for _, r := range results {
			if err := cli.Output(r, cli.OutputOptions{Format: cli.FormatJSONLines}); err != nil {
				finish(err)
				return
			}
		}
		if eventsOnce && ev.Type == openairealtime.EventTypeResponseDone {
			finish(nil)
		}
	})
	session.Events().On(openairealtime.SessionEventClose, func(ce *openairealtime.ConversationEvent) {
		finish(ce.Event.Err)
	})

	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer session.Disconnect()

	if len(args) > 0 {
		if err := session.WaitForSessionCreated(ctx); err != nil {
			return err
		}
		err := session.SendUserMessageContent([]openairealtime.ContentPart{
			{Type: openairealtime.ContentTypeInputText, Text: strings.Join(args, " ")},
		})
		if err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return err
	}
}
