package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsloop/axon/internal/axonerr"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "axon",
	Short: "Axon - single-operator agent kernel and autonomy runtime",
	Long: `Axon classifies tasks, ranks capability strategies against operator-set
governance profiles, executes them under retry and circuit-breaker
discipline, and tunes its own policy from operator feedback.

Every run is recorded to a durable, content-addressed evidence store so
decisions stay auditable after the fact.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to axon.toml (default: search . and .axon)")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// ExitCodeFor maps a command error onto the stable CLI exit code table
// (§6): axonerr codes carry their own mapping, anything else is a generic
// failure.
func ExitCodeFor(err error) int {
	if axErr, ok := axonerr.As(err); ok {
		return axErr.Code.ExitCode()
	}
	return 1
}
