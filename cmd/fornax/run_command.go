package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fornax/internal/sips"
)

// stageRoutes maps stage names onto their daemon trigger endpoints.
var stageRoutes = map[sips.StageName]string{
	sips.StageExtract:        "/extract",
	sips.StageRestructure:    "/restructure",
	sips.StageAssemble:       "/assemble",
	sips.StageStartTransfer:  "/start",
	sips.StageRequestCleanup: "/request-cleanup",
}

type triggerResponse struct {
	Detail  string   `json:"detail"`
	Objects []string `json:"objects"`
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <stage>",
		Short: "Trigger one pipeline stage on the daemon",
		Long:  "Trigger one pipeline stage. Stages: " + stageNames() + ".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, ok := sips.ParseStageName(args[0])
			if !ok {
				return fmt.Errorf("unknown stage %q (expected one of %s)", args[0], stageNames())
			}

			var resp triggerResponse
			if err := ctx.postJSON(cmd, stageRoutes[name], nil, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Detail)
			for _, identifier := range resp.Objects {
				fmt.Fprintf(out, "  %s\n", identifier)
			}
			return nil
		},
	}
}

func stageNames() string {
	stages := sips.Stages()
	names := make([]string, 0, len(stages))
	for _, stage := range stages {
		names = append(names, string(stage.Name))
	}
	return strings.Join(names, ", ")
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <identifier>",
		Short: "Delete a delivered package archive from the destination directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp triggerResponse
			body := map[string]string{"identifier": args[0]}
			if err := ctx.postJSON(cmd, "/cleanup", body, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Detail)
			return nil
		},
	}
}

func newRemoveCompletedCommand(ctx *commandContext) *cobra.Command {
	var unit string

	cmd := &cobra.Command{
		Use:   "remove-completed",
		Short: "Hide completed transfers or ingests on every opted-in origin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var route string
			switch unit {
			case "transfer":
				route = "/remove-transfers"
			case "ingest":
				route = "/remove-ingests"
			default:
				return fmt.Errorf("unknown unit %q (expected transfer or ingest)", unit)
			}

			var resp triggerResponse
			if err := ctx.postJSON(cmd, route, nil, &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Detail)
			for _, uuid := range resp.Objects {
				fmt.Fprintf(out, "  %s\n", uuid)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&unit, "unit", "transfer", "Unit type to hide (transfer or ingest)")
	return cmd
}
