package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/realtalk/pkg/audio/pcm"
	"github.com/haivivi/realtalk/pkg/cli"
	"github.com/haivivi/realtalk/pkg/storage"
	"github.com/haivivi/realtalk/pkg/transcript"
)

var historyAudioDir string

var historyCmd = &cobra.Command{
	Use:   "history [session]",
	Short: "List recorded transcripts",
	Long: `Without arguments, list recorded sessions. With a session key, print its
transcript. --json or -o dump the records instead.

--audio-dir extracts the recorded audio of each item into a directory.

Example:
  realtalk history --record ~/realtalk-data
  realtalk history chat_1f0c... --audio-dir ./audio`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyAudioDir, "audio-dir", "", "write item audio here as raw PCM")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cctx, _ := getContext()
	store, files, ok, err := recordStores(ctx, cctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no record directory. Use --record or set record_dir in the context")
	}
	defer store.Close()

	if len(args) == 0 {
		sessions, err := transcript.Sessions(ctx, store)
		if err != nil {
			return err
		}
		if outputJSON || outputFile != "" {
			return outputResult(sessions)
		}
		if len(sessions) == 0 {
			fmt.Println("No recorded sessions")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tSTARTED\tITEMS\tMODEL")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Key, s.StartedAt.Format("2006-01-02 15:04:05"), s.Items, s.Model)
		}
		return w.Flush()
	}

	records, err := transcript.List(ctx, store, args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("session %q not found", args[0])
	}
	if outputJSON || outputFile != "" {
		return outputResult(records)
	}

	st := cli.Default
	for _, r := range records {
		text := r.Text
		if text == "" {
			text = r.Transcript
		}
		switch {
		case r.ToolName != "":
			fmt.Println(st.Speaker("tool"), st.Tool.Render(r.ToolName+"("+r.Arguments+")"))
		case r.Output != "":
			fmt.Println(st.Speaker("tool"), st.Dim.Render(cli.Truncate(r.Output, 120)))
		default:
			fmt.Println(st.Speaker(r.Role), text)
		}
		if r.AudioFile != "" {
			fmt.Println("   ", st.Dim.Render(fmt.Sprintf("audio %s (%s)", r.AudioFile, cli.FormatDuration(r.AudioMs))))
		}
		if historyAudioDir != "" && r.AudioFile != "" {
			if err := extractAudio(cmd, files, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// extractAudio copies the audio of r into --audio-dir.
func extractAudio(cmd *cobra.Command, files storage.FileStore, r *transcript.Record) error {
	samples, err := transcript.ReadAudio(cmd.Context(), files, r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(historyAudioDir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(historyAudioDir, fmt.Sprintf("%04d-%s.pcm", r.Seq, r.ItemID))
	if err := pcm.WriteFile(name, samples); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
