package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/wflow"
	"github.com/aretw0/wflow/internal/cli"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Start the system and report its health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithSystem(globalOptions(cmd), func(ctx context.Context, sys *wflow.System) error {
			h := sys.Guardian.HealthCheck(ctx)
			s := sys.Guardian.Stats(ctx)
			cfg := sys.Config()

			fmt.Printf("Storage backend:    %s (%s)\n", cfg.Storage.Backend, cfg.Storage.Layout)
			fmt.Printf("Active sessions:    %d\n", h.ActiveSessions)
			fmt.Printf("Commands processed: %d\n", h.TotalCommandsProcessed)
			fmt.Printf("Sessions created:   %d\n", s.TotalSessionsCreated)
			fmt.Printf("Success rate:       %.1f%%\n", s.SuccessRate)
			fmt.Printf("Uptime:             %ds\n", h.UptimeSeconds)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
