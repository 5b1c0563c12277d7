package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/wflow"
	"github.com/aretw0/wflow/internal/cli"
	adminhttp "github.com/aretw0/wflow/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP server",
	Long: `Starts the actor system and serves the read-only admin API: /healthz, /stats,
/metrics, /aggregates and the /events server-sent event stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithSystem(globalOptions(cmd), func(ctx context.Context, sys *wflow.System) error {
			cfg := sys.Config()
			addr := cfg.Admin.Addr
			if cmd.Flags().Changed("addr") {
				addr, _ = cmd.Flags().GetString("addr")
			}

			fmt.Printf("Starting wflow admin server on %s\n", addr)
			if err := adminhttp.ListenAndServe(ctx, addr, sys.AdminHandler(), cfg.ShutdownTimeout); err != nil {
				return err
			}
			fmt.Println("wflow admin server stopped gracefully")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default: admin.addr from the config)")
}
