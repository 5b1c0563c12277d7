package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/wflow/internal/cli"
	"github.com/aretw0/wflow/pkg/engine"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Run a workflow by name",
	Long:  `Runs the named workflow, prompting only for arguments not preset with --set.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		presets, err := presetsFlag(cmd)
		if err != nil {
			return err
		}
		return cli.RunFlow(globalOptions(cmd), args[0], presets)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available workflows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Submit(globalOptions(cmd), []engine.Command{
			engine.DiscoverWorkflows{},
			engine.ListWorkflows{},
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)

	runCmd.Flags().StringArray("set", nil, "Preset an argument value (key=value), repeatable")
}
