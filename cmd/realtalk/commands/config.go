package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/realtalk/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

Contexts allow you to manage multiple API configurations,
similar to kubectl's context management.

Configuration is stored in ~/.giztoy/realtalk/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

The global --transport, --record and --s3-bucket flags are stored in the
context as its defaults.

Example:
  realtalk config add-context default --api-key sk-...
  realtalk config add-context rtc --api-key sk-... --transport webrtc --voice alloy
  realtalk config add-context vad --api-key sk-... --server-vad --record ~/realtalk-data`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		str := func(name string) string {
			v, _ := f.GetString(name)
			return v
		}
		serverVAD, _ := f.GetBool("server-vad")

		c := &cli.Context{
			APIKey:       str("api-key"),
			BaseURL:      str("base-url"),
			WebRTCURL:    str("webrtc-url"),
			Organization: str("organization"),
			Project:      str("project"),
			Model:        str("model"),
			Transport:    transport,
			Voice:        str("voice"),
			Instructions: str("instructions"),
			ServerVAD:    serverVAD,
			RecordDir:    recordDir,
			S3Bucket:     s3Bucket,
			S3Prefix:     str("s3-prefix"),
		}
		if c.APIKey == "" {
			return fmt.Errorf("--api-key is required")
		}
		if err := getConfig().AddContext(args[0], c); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q added", args[0])
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getConfig().DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getConfig().UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context %q", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}
		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tTRANSPORT\tMODEL\tVOICE")
		for _, name := range names {
			c := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", current, name,
				orDefault(c.Transport), orDefault(c.Model), orDefault(c.Voice))
		}
		return w.Flush()
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		view := struct {
			Path           string                  `yaml:"path" json:"path"`
			CurrentContext string                  `yaml:"current_context" json:"current_context"`
			Contexts       map[string]*cli.Context `yaml:"contexts" json:"contexts"`
		}{
			Path:           cfg.Path(),
			CurrentContext: cfg.CurrentContext,
			Contexts:       make(map[string]*cli.Context, len(cfg.Contexts)),
		}
		for name, c := range cfg.Contexts {
			masked := *c
			masked.APIKey = cli.MaskAPIKey(c.APIKey)
			view.Contexts[name] = &masked
		}
		return outputResult(view)
	},
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

func init() {
	f := configAddContextCmd.Flags()
	f.String("api-key", "", "API key (required)")
	f.String("base-url", "", "WebSocket endpoint (optional)")
	f.String("webrtc-url", "", "WebRTC endpoint (optional)")
	f.String("organization", "", "organization ID (optional)")
	f.String("project", "", "project ID (optional)")
	f.String("model", "", "realtime model (optional)")
	f.String("voice", "", "assistant voice (optional)")
	f.String("instructions", "", "system instructions (optional)")
	f.Bool("server-vad", false, "enable server-side turn detection")
	f.String("s3-prefix", "", "object key prefix in the S3 bucket (optional)")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
