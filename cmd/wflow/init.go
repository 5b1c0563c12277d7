package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/wflow/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Long:  `Creates the configuration file together with the workflows and i18n directories.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := globalOptions(cmd).ConfigPath
		if path == "" {
			var err error
			if path, err = config.DefaultPath(); err != nil {
				return err
			}
		}
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := config.Init(path, force)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration: %s\n", path)
		fmt.Printf("Workflows:     %s\n", cfg.WorkflowsDir)
		fmt.Printf("Storage:       %s at %s\n", cfg.Storage.Backend, cfg.Storage.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
}
