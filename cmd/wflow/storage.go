package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/wflow"
	"github.com/aretw0/wflow/internal/cli"
	"github.com/aretw0/wflow/internal/xjson"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
	"github.com/aretw0/wflow/pkg/eventstore"
	"github.com/aretw0/wflow/pkg/ports"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Manage the event journal",
}

var storageSetCmd = &cobra.Command{
	Use:   "set <backend>",
	Short: "Select the journal backend (memory, badger, redis, file, sqlite)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Submit(globalOptions(cmd), []engine.Command{engine.SetStorageBackend{Backend: args[0]}})
	},
}

var storageLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored aggregates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Submit(globalOptions(cmd), []engine.Command{engine.ListAggregates{}})
	},
}

var storageReplayCmd = &cobra.Command{
	Use:   "replay <aggregate-id>",
	Short: "Rebuild and print the state of an aggregate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Submit(globalOptions(cmd), []engine.Command{engine.ReplayAggregate{ID: args[0]}})
	},
}

var storagePurgeCmd = &cobra.Command{
	Use:   "purge <aggregate-id>",
	Short: "Delete the events of an aggregate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetUint64("to")
		return cli.Submit(globalOptions(cmd), []engine.Command{engine.PurgeAggregate{ID: args[0], ToSequence: to}})
	},
}

var storageEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query stored events across sessions by type and time",
	Long: `Print the stored events of every session, oldest first.
--since and --until take an RFC 3339 timestamp or a duration back from now (e.g. 1h).
The badger backend with the "event" layout answers from its indexes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eventType, _ := cmd.Flags().GetString("type")
		sinceFlag, _ := cmd.Flags().GetString("since")
		untilFlag, _ := cmd.Flags().GetString("until")

		now := time.Now()
		since, err := eventstore.ParseTimeBound(sinceFlag, now)
		if err != nil {
			return err
		}
		until, err := eventstore.ParseTimeBound(untilFlag, now)
		if err != nil {
			return err
		}

		return cli.WithSystem(globalOptions(cmd), func(ctx context.Context, sys *wflow.System) error {
			events, err := sys.Store.QueryEvents(ctx, ports.EventQuery{
				Type:  domain.EventType(eventType),
				Since: since,
				Until: until,
			})
			if err != nil {
				return err
			}
			data, err := xjson.Marshal(events)
			if err != nil {
				return err
			}
			return printJSON(data)
		})
	},
}

func init() {
	rootCmd.AddCommand(storageCmd)
	storageCmd.AddCommand(storageSetCmd)
	storageCmd.AddCommand(storageLsCmd)
	storageCmd.AddCommand(storageReplayCmd)
	storageCmd.AddCommand(storagePurgeCmd)
	storageCmd.AddCommand(storageEventsCmd)

	storagePurgeCmd.Flags().Uint64("to", 0, "Delete events before this position (0 deletes all)")
	storageEventsCmd.Flags().String("type", "", "Only events of this type (e.g. workflow_started)")
	storageEventsCmd.Flags().String("since", "", "Only events at or after this time")
	storageEventsCmd.Flags().String("until", "", "Only events before this time")
}
