package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/haivivi/realtalk/pkg/cli"
	"github.com/haivivi/realtalk/pkg/kv"
	openairealtime "github.com/haivivi/realtalk/pkg/openai-realtime"
	"github.com/haivivi/realtalk/pkg/storage"
)

const appName = "realtalk"

var (
	cfgFile     string
	contextName string
	outputFile  string
	inputFile   string
	outputJSON  bool
	verbose     bool
	transport   string
	recordDir   string
	s3Bucket    string

	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "realtalk",
	Short: "OpenAI Realtime API CLI tool",
	Long: `realtalk - a command line client for the OpenAI Realtime API.

It holds a realtime session over WebSocket or WebRTC, keeps the conversation
state, runs local tools, and can record transcripts with their audio.

Configuration is stored in ~/.giztoy/realtalk/ and supports multiple contexts,
similar to kubectl's context management.

Examples:
  # Set up a context
  realtalk config add-context default --api-key sk-...

  # Chat, recording the transcript
  realtalk chat --record ~/realtalk-data

  # Watch text deltas only
  realtalk events --jq 'select(.type == "response.text.delta") | .delta'
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.giztoy/realtalk/config.yaml)")
	pf.StringVarP(&contextName, "context", "c", "", "context name to use")
	pf.StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	pf.StringVarP(&inputFile, "file", "f", "", "input request file (YAML or JSON)")
	pf.BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log protocol frames to stderr")
	pf.StringVar(&transport, "transport", "", "transport: websocket or webrtc (default from context)")
	pf.StringVar(&recordDir, "record", "", "record transcripts to this directory")
	pf.StringVar(&s3Bucket, "s3-bucket", "", "store recorded audio in this S3 bucket")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(historyCmd)
}

func initConfig() {
	var err error
	globalConfig, err = cli.LoadConfig(appName, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

func getConfig() *cli.Config {
	return globalConfig
}

func getContext() (*cli.Context, error) {
	ctx, err := getConfig().ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'realtalk config use-context'")
		}
		return nil, err
	}
	return ctx, nil
}

func outputFormat() cli.OutputFormat {
	if outputJSON {
		return cli.FormatJSON
	}
	return cli.FormatYAML
}

func outputResult(result any) error {
	return cli.Output(result, cli.OutputOptions{Format: outputFormat(), File: outputFile})
}

// newClient builds a realtime client from the context, with --transport
// taking precedence.
func newClient(c *cli.Context) (*openairealtime.Client, error) {
	apiKey := c.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("context %q has no api key and OPENAI_API_KEY is not set", c.Name)
	}

	var opts []openairealtime.Option
	kind := transport
	if kind == "" {
		kind = c.Transport
	}
	if kind != "" {
		opts = append(opts, openairealtime.WithTransport(kind))
	}
	if c.BaseURL != "" {
		opts = append(opts, openairealtime.WithWebSocketURL(c.BaseURL))
	}
	if c.WebRTCURL != "" {
		opts = append(opts, openairealtime.WithHTTPURL(c.WebRTCURL))
	}
	if c.Organization != "" {
		opts = append(opts, openairealtime.WithOrganization(c.Organization))
	}
	if c.Project != "" {
		opts = append(opts, openairealtime.WithProject(c.Project))
	}
	if c.Model != "" {
		opts = append(opts, openairealtime.WithModel(c.Model))
	}
	return openairealtime.NewClient(apiKey, opts...), nil
}

// sessionConfig turns the context defaults into session overrides.
func sessionConfig(c *cli.Context) *openairealtime.SessionConfig {
	cfg := &openairealtime.SessionConfig{
		Voice:        c.Voice,
		Instructions: c.Instructions,
	}
	if c.ServerVAD {
		cfg.TurnDetection = &openairealtime.TurnDetection{Type: openairealtime.VADServerVAD}
	}
	return cfg
}

// recordStores opens the transcript stores selected by --record and
// --s3-bucket or the context. ok is false when recording is off.
func recordStores(ctx context.Context, c *cli.Context) (store kv.Store, files storage.FileStore, ok bool, err error) {
	dir := recordDir
	if dir == "" && c != nil {
		dir = c.RecordDir
	}
	if dir == "" {
		return nil, nil, false, nil
	}

	store, err = kv.NewBadger(kv.BadgerOptions{Dir: filepath.Join(dir, "kv")})
	if err != nil {
		return nil, nil, false, err
	}

	bucket, prefix := s3Bucket, ""
	if bucket == "" && c != nil {
		bucket, prefix = c.S3Bucket, c.S3Prefix
	}
	if bucket != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			store.Close()
			return nil, nil, false, fmt.Errorf("load aws config: %w", err)
		}
		files = storage.NewS3(s3.NewFromConfig(awsCfg), bucket,
			storage.WithPrefix(prefix), storage.WithContentType("audio/L16;rate=24000"))
		return store, files, true, nil
	}

	local, err := storage.NewLocal(filepath.Join(dir, "audio"))
	if err != nil {
		store.Close()
		return nil, nil, false, err
	}
	return store, local, true, nil
}
