package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/wflow/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "wflow",
	Short: "wflow turns command templates into ready-to-run commands",
	Long: `wflow discovers YAML workflows, lets you pick one, resolves its arguments
(static values, enums or shell snippets) and copies the generated command to
the clipboard. Every step is recorded as an event so sessions can be inspected
and replayed.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		presets, err := presetsFlag(cmd)
		if err != nil {
			return err
		}
		return cli.RunFlow(globalOptions(cmd), "", presets)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func globalOptions(cmd *cobra.Command) cli.Options {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	quiet, _ := cmd.Flags().GetBool("quiet")
	return cli.Options{ConfigPath: configPath, Debug: debug, Quiet: quiet}
}

func presetsFlag(cmd *cobra.Command) (map[string]string, error) {
	pairs, _ := cmd.Flags().GetStringArray("set")
	return cli.ParsePresets(pairs)
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default $XDG_CONFIG_HOME/wflow/config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Hide the banner and system messages")

	rootCmd.Flags().StringArray("set", nil, "Preset an argument value (key=value), repeatable")
}
