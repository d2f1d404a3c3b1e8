package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsloop/axon/internal/app"
	"github.com/opsloop/axon/internal/mcp"
	"github.com/opsloop/axon/internal/printer"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline <file>",
	Short: "Run a declarative sequence of MCP tool calls (.json, .toml, or .yaml)",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	fileName := args[0]
	data, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("failed to read pipeline file: %w", err)
	}

	p, err := mcp.ParsePipeline(fileName, data)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	results := mcp.Run(ctx, a.MCPClient, a.Catalog, p)

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			printer.Warning("%s: %v", r.Step.Name, r.Err)
			continue
		}
		printer.Success("%s: %d bytes in %.0fms", r.Step.Name, len(r.Result.Payload), r.Result.Latency)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d pipeline steps failed", failures, len(results))
	}
	return nil
}
