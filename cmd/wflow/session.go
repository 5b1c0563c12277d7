package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/wflow"
	"github.com/aretw0/wflow/internal/cli"
	"github.com/aretw0/wflow/internal/xjson"
	"github.com/aretw0/wflow/pkg/domain"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect recorded sessions",
	Long:  `List sessions stored in the journal and print their state or events.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List sessions and their current phase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithSystem(globalOptions(cmd), func(ctx context.Context, sys *wflow.System) error {
			ids, err := sys.Store.ListAggregates(ctx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			fmt.Println("Sessions:")
			for _, id := range ids {
				state, err := sys.Store.GetCurrentState(ctx, id)
				if err != nil {
					fmt.Printf("- %s (unreadable: %v)\n", id, err)
					continue
				}
				fmt.Printf("- %s %s\n", id, state.Phase())
			}
			return nil
		})
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the current state of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithSystem(globalOptions(cmd), func(ctx context.Context, sys *wflow.System) error {
			events, err := sys.Store.GetEvents(ctx, args[0])
			if err != nil {
				return err
			}
			if len(events) == 0 {
				return fmt.Errorf("session %s: %w", args[0], domain.ErrSessionNotFound)
			}
			state, err := sys.Store.GetCurrentState(ctx, args[0])
			if err != nil {
				return err
			}
			data, err := domain.MarshalState(state)
			if err != nil {
				return err
			}
			return printJSON(data)
		})
	},
}

var sessionEventsCmd = &cobra.Command{
	Use:   "events <session-id>",
	Short: "Print the recorded events of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithSystem(globalOptions(cmd), func(ctx context.Context, sys *wflow.System) error {
			events, err := sys.Store.GetEvents(ctx, args[0])
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

// printJSON pretty prints an encoded document.
func printJSON(data []byte) error {
	var v any
	if err := xjson.Unmarshal(data, &v); err != nil {
		return err
	}
	pretty, err := xjson.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionEventsCmd)
}
