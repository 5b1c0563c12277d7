package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/wflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of wflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wflow version %s\n", wflow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
