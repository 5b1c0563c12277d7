package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/wflow/internal/cli"
	"github.com/aretw0/wflow/pkg/engine"
)

var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Manage the workflow repository URL",
}

var resourceSetCmd = &cobra.Command{
	Use:   "set <url>",
	Short: "Set the repository used by sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := cli.LoadSettings(globalOptions(cmd))
		if err != nil {
			return err
		}
		if err := settings.SetResourceURL(args[0]); err != nil {
			return err
		}
		fmt.Printf("Resource URL set to %s\n", args[0])
		return nil
	},
}

var resourceCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the repository used by sync",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := cli.LoadSettings(globalOptions(cmd))
		if err != nil {
			return err
		}
		url := settings.ResourceURL()
		if url == "" {
			fmt.Printf("%s (default)\n", engine.DefaultRemoteURL)
			return nil
		}
		fmt.Println(url)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resourceCmd)
	resourceCmd.AddCommand(resourceSetCmd)
	resourceCmd.AddCommand(resourceCurrentCmd)
}
