package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/wflow/internal/cli"
	"github.com/aretw0/wflow/pkg/engine"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch workflows from a git repository",
	Long: `Clones the workflow repository into the workflows directory, replacing its
contents. The URL defaults to the configured resource URL.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		sshKey, _ := cmd.Flags().GetString("ssh-key")
		branch, _ := cmd.Flags().GetString("branch")
		return cli.Submit(globalOptions(cmd), []engine.Command{
			engine.SyncWorkflows{RemoteURL: url, SSHKey: sshKey, Branch: branch},
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().String("url", "", "Repository URL (default: configured resource URL)")
	syncCmd.Flags().String("ssh-key", "", "Private key used for SSH remotes")
	syncCmd.Flags().String("branch", engine.DefaultBranch, "Branch to check out")
}
