package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsloop/axon/internal/scaffold"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new axon project in the current directory",
	Long: `Initialize a new axon project with default configuration and an example
sandboxed capability.

Creates:
  • axon.toml - kernel, governance, and capability configuration
  • capabilities/example-service/ - an example sandboxed capability

Use --force to reinitialize an existing project (overwrites axon.toml).`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing axon.toml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if err := scaffold.CheckExisting(); err != nil {
			return err
		}
	}

	if err := scaffold.Initialize(forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess()
	return nil
}
