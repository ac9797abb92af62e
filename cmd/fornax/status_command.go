package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fornax/internal/preflight"
)

type healthResponse struct {
	Status     string `json:"status"`
	Total      int    `json:"total"`
	Waiting    int    `json:"waiting"`
	InProgress int    `json:"in_progress"`
	Completed  int    `json:"completed"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and environment checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			printLines(out, renderSectionHeader("Daemon", colorize))
			var health healthResponse
			if err := ctx.getJSON(cmd, "/status", &health); err != nil {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, err.Error(), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running", colorize))
				fmt.Fprintln(out, renderStatusLine("Packages", statusInfo, fmt.Sprintf("%d tracked", health.Total), colorize))
				fmt.Fprintln(out, renderStatusLine("Waiting", statusInfo, fmt.Sprintf("%d", health.Waiting), colorize))
				inProgressKind := statusInfo
				if health.InProgress > 0 {
					inProgressKind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("In progress", inProgressKind, fmt.Sprintf("%d", health.InProgress), colorize))
				fmt.Fprintln(out, renderStatusLine("Completed", statusInfo, fmt.Sprintf("%d", health.Completed), colorize))
			}

			if skipChecks {
				return nil
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			fmt.Fprintln(out)
			printLines(out, renderSectionHeader("Environment", colorize))
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				message := ""
				if !result.Passed {
					kind = statusError
					message = result.Detail
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, message, colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip local environment checks")
	return cmd
}

func printLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
