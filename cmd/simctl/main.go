package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	cl "marketsimulator/internal/cli"
	"marketsimulator/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL
	token := cfg.AdminToken

	root := &cobra.Command{
		Use:           "simctl",
		Short:         "Administer the market simulation day cycle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")
	root.PersistentFlags().StringVar(&token, "token", token, "admin bearer token (defaults to ADMIN_TOKEN)")

	newClient := func() *cl.Client {
		return cl.NewClient(apiBase, token)
	}

	root.AddCommand(
		simpleCmd("status", "Show the day control state", func(ctx context.Context) (map[string]any, error) {
			return newClient().Status(ctx)
		}),
		simpleCmd("start", "Start the simulation at day 1", func(ctx context.Context) (map[string]any, error) {
			return newClient().Start(ctx)
		}),
		simpleCmd("advance", "Force the next day", func(ctx context.Context) (map[string]any, error) {
			return newClient().Advance(ctx)
		}),
		simpleCmd("stop", "End the simulation", func(ctx context.Context) (map[string]any, error) {
			return newClient().Stop(ctx)
		}),
		simpleCmd("pause", "Pause the day countdown", func(ctx context.Context) (map[string]any, error) {
			return newClient().Pause(ctx)
		}),
		simpleCmd("resume", "Resume the day countdown", func(ctx context.Context) (map[string]any, error) {
			return newClient().Resume(ctx)
		}),
		newAutoCmd(newClient),
		newEventsCmd(newClient),
		newResetCmd(newClient),
		newLeaderboardCmd(newClient),
	)

	if err := root.Execute(); err != nil {
		var apiErr *cl.APIError
		if errors.As(err, &apiErr) {
			printFailure(os.Stderr, "error (%d): %s", apiErr.Status, apiErr.Message)
		} else {
			printFailure(os.Stderr, "error: %v", err)
		}
		os.Exit(1)
	}
}

func simpleCmd(use, short string, call func(ctx context.Context) (map[string]any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := call(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func newAutoCmd(newClient func() *cl.Client) *cobra.Command {
	var (
		enable   bool
		disable  bool
		interval float64
	)
	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Show or change automatic day advance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient()

			if !enable && !disable {
				if cmd.Flags().Changed("interval") {
					return fmt.Errorf("--interval needs --enable or --disable")
				}
				out, err := client.AutoStatus(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			}

			var minutes *float64
			if cmd.Flags().Changed("interval") {
				minutes = &interval
			}
			out, err := client.ConfigureAuto(ctx, enable, minutes)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().BoolVar(&enable, "enable", false, "turn automatic advance on")
	cmd.Flags().BoolVar(&disable, "disable", false, "turn automatic advance off")
	cmd.Flags().Float64Var(&interval, "interval", 0, "minutes between days")
	cmd.MarkFlagsMutuallyExclusive("enable", "disable")
	return cmd
}

func newEventsCmd(newClient func() *cl.Client) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent day transitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient().Events(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events")
	return cmd
}

func newResetCmd(newClient func() *cl.Client) *cobra.Command {
	var confirm string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe trading history and return to day 0",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient().Reset(ctx, confirm)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&confirm, "confirm", "", `must be "RESET"`)
	_ = cmd.MarkFlagRequired("confirm")
	return cmd
}

func newLeaderboardCmd(newClient func() *cl.Client) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the public leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient().Leaderboard(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "entries to show (server default when 0)")
	return cmd
}

func printJSON(cmd *cobra.Command, v map[string]any) error {
	printHeadline(cmd.OutOrStdout(), v)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
