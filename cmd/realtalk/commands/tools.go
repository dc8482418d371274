package commands

import (
	"context"
	"time"

	openairealtime "github.com/haivivi/realtalk/pkg/openai-realtime"
)

type getTimeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"IANA time zone name, e.g. Asia/Shanghai. Defaults to local time."`
}

type addArgs struct {
	A float64 `json:"a" jsonschema:"first addend"`
	B float64 `json:"b" jsonschema:"second addend"`
}

// demoTool is a tool the chat command registers on every session.
type demoTool struct {
	def     openairealtime.ToolDefinition
	handler openairealtime.ToolHandler
}

func demoTools() []demoTool {
	var tools []demoTool
	def, h := openairealtime.MustNewFuncTool("get_time", "Returns the current date and time.",
		func(_ context.Context, args getTimeArgs) (any, error) {
			loc := time.Local
			if args.Timezone != "" {
				l, err := time.LoadLocation(args.Timezone)
				if err != nil {
					return nil, err
				}
				loc = l
			}
			now := time.Now().In(loc)
			return map[string]string{
				"time":     now.Format(time.RFC3339),
				"weekday":  now.Weekday().String(),
				"timezone": loc.String(),
			}, nil
		})
	tools = append(tools, demoTool{def, h})

	def, h = openairealtime.MustNewFuncTool("add", "Adds two numbers.",
		func(_ context.Context, args addArgs) (any, error) {
			return map[string]float64{"sum": args.A + args.B}, nil
		})
	tools = append(tools, demoTool{def, h})
	return tools
}
