package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsloop/axon/internal/app"
	"github.com/opsloop/axon/internal/diagnostics"
	"github.com/opsloop/axon/internal/printer"
)

var diagnoseRecentLimit int
var diagnoseHotspotLimit int

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Walk config, services, breakers, and recent runs for a severity-ranked health report",
	RunE:  runDiagnose,
}

func init() {
	diagnoseCmd.Flags().IntVar(&diagnoseRecentLimit, "recent", 20, "how many of the most recent runs to weigh")
	diagnoseCmd.Flags().IntVar(&diagnoseHotspotLimit, "hotspots", 5, "how many failure hotspots to surface")
	rootCmd.AddCommand(diagnoseCmd)
}

func configFileExists() bool {
	for _, candidate := range []string{configPath, "axon.toml", ".axon/axon.toml"} {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return true
		}
	}
	return false
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	configLoaded := configFileExists()

	var breakers []diagnostics.BreakerSnapshot
	for _, t := range a.Cfg.Tools {
		breakers = append(breakers, diagnostics.BreakerSnapshot{ToolName: t.Name, State: a.Breakers.For(t.Name).State()})
	}

	runs, err := a.Store.AllRuns()
	if err != nil {
		printer.Warning("failed to load run history: %v", err)
	}
	recent := runs
	if len(recent) > diagnoseRecentLimit {
		recent = recent[len(recent)-diagnoseRecentLimit:]
	}

	hotspots, err := a.Store.Index().TopFailureHotspots(diagnoseHotspotLimit)
	if err != nil {
		printer.Warning("failed to load failure hotspots: %v", err)
	}
	var hotspotNames []diagnostics.HotspotName
	for _, h := range hotspots {
		hotspotNames = append(hotspotNames, diagnostics.HotspotName{Name: h.ToolName})
	}

	report := diagnostics.Walk(configLoaded, len(a.Registry.List()), breakers, recent, diagnoseHotspotLimit, hotspotNames)

	for _, f := range report.Findings {
		switch f.Severity {
		case diagnostics.SeverityCritical:
			printer.Warning("[%s] %s: %s", f.Severity, f.Area, f.Detail)
		default:
			printer.Println(string(f.Severity) + " " + f.Area + ": " + f.Detail)
		}
	}
	return nil
}
