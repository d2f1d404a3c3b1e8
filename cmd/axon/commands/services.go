package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsloop/axon/internal/app"
	"github.com/opsloop/axon/internal/printer"
	"github.com/opsloop/axon/pkg/evidence"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List and directly invoke registered capability services",
}

var servicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered capability service and its contract",
	RunE:  runServicesList,
}

var servicesCallParams []string

var servicesCallCmd = &cobra.Command{
	Use:   "call <service_name>",
	Short: "Directly invoke a registered service outside of the ranking/planning pipeline, for debugging",
	Args:  cobra.ExactArgs(1),
	RunE:  runServicesCall,
}

func init() {
	servicesCallCmd.Flags().StringArrayVar(&servicesCallParams, "param", nil, "input as key=value, may be repeated")
	servicesCmd.AddCommand(servicesListCmd)
	servicesCmd.AddCommand(servicesCallCmd)
	rootCmd.AddCommand(servicesCmd)
}

func runServicesList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, d := range a.Registry.List() {
		mode := "sandboxed"
		if !d.Sandbox {
			mode = "mcp"
		}
		printer.Println(fmt.Sprintf("%-24s layer=%-10s risk=%-7s maturity=%-12s mode=%s(%s)", d.Name, d.RequiredLayer, d.RiskLevel, d.Maturity, d.ExecutionMode, mode))
	}
	return nil
}

func runServicesCall(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	inputs := map[string]string{}
	for _, kv := range servicesCallParams {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return printer.Error("invalid --param", fmt.Sprintf("expected key=value, got %q", kv), nil)
		}
		inputs[parts[0]] = parts[1]
	}

	rc := &evidence.RunContext{
		RunID:            "debug",
		Profile:          evidence.ProfileAuto,
		AllowedLayers:    map[string]bool{"core": true, "extended": true, "experimental": true},
		BlockedMaturity:  map[string]bool{},
		MaxRiskLevel:     evidence.RiskHigh,
		MaxFallbackSteps: 0,
		TraceID:          "debug",
	}

	outcome, err := a.Registry.Call(ctx, args[0], inputs, rc)
	if err != nil {
		return err
	}
	if outcome.Skipped {
		printer.Info("skipped: %s", outcome.Reason)
		return nil
	}
	printer.Success("succeeded: %d artifact(s), advisory=%v", len(outcome.Result.Artifacts), outcome.Result.Advisory)
	for _, ar := range outcome.Result.Artifacts {
		printer.Println(fmt.Sprintf("  %s (%s, %d bytes)", ar.URI, ar.Kind, ar.SizeBytes))
	}
	return nil
}
