// Package cli holds the configuration, request-file, and output helpers of
// the realtalk command.
//
// Configuration lives in ~/.giztoy/realtalk/config.yaml and holds named
// contexts, similar to kubectl:
//
//	cfg, err := cli.LoadConfig("realtalk", "")
//	ctx, err := cfg.ResolveContext(name)
//
// Results are printed as YAML by default, or JSON for piping:
//
//	cli.Output(result, cli.OutputOptions{Format: cli.FormatJSON})
package cli
