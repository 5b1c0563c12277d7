package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/wflow/internal/cli"
	"github.com/aretw0/wflow/pkg/engine"
)

var langCmd = &cobra.Command{
	Use:   "lang",
	Short: "Manage the interface language",
}

var langSetCmd = &cobra.Command{
	Use:   "set <language>",
	Short: "Set the interface language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Submit(globalOptions(cmd), []engine.Command{engine.SetLanguage{Language: args[0]}})
	},
}

var langCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the interface language",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Submit(globalOptions(cmd), []engine.Command{engine.GetCurrentLanguage{}})
	},
}

var langListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Submit(globalOptions(cmd), []engine.Command{engine.ListLanguages{}})
	},
}

func init() {
	rootCmd.AddCommand(langCmd)
	langCmd.AddCommand(langSetCmd)
	langCmd.AddCommand(langCurrentCmd)
	langCmd.AddCommand(langListCmd)
}
