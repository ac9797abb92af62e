package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fornax/internal/sips"
)

// sipRecord mirrors the daemon's package representation on the wire.
type sipRecord struct {
	ID                int64           `json:"id"`
	Identifier        string          `json:"identifier"`
	Status            string          `json:"status"`
	Path              string          `json:"path"`
	Origin            string          `json:"origin"`
	ExternalReference string          `json:"external_reference,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	ModifiedAt        time.Time       `json:"modified_at"`
}

func newSIPsCommand(ctx *commandContext) *cobra.Command {
	sipsCmd := &cobra.Command{
		Use:   "sips",
		Short: "Inspect tracked packages",
	}

	sipsCmd.AddCommand(newSIPsListCommand(ctx))
	sipsCmd.AddCommand(newSIPsShowCommand(ctx))

	return sipsCmd
}

func newSIPsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/sips"
			if statusFilter != "" {
				if _, ok := sips.ParseStatus(statusFilter); !ok {
					return fmt.Errorf("unknown status %q", statusFilter)
				}
				path += "?status=" + url.QueryEscape(statusFilter)
			}

			var records []sipRecord
			if err := ctx.getJSON(cmd, path, &records); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No packages tracked")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					strconv.FormatInt(record.ID, 10),
					record.Identifier,
					statusLabel(record.Status),
					record.Origin,
					record.ModifiedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Identifier", "Status", "Origin", "Modified"},
				rows,
				1,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show packages in this status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit raw JSON")
	return cmd
}

func newSIPsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <identifier>",
		Short: "Show one package in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var record sipRecord
			if err := ctx.getJSON(cmd, "/sips/"+url.PathEscape(args[0]), &record); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, record)
			}

			rows := [][]string{
				{"Identifier", record.Identifier},
				{"Status", statusLabel(record.Status)},
				{"Origin", record.Origin},
				{"Path", record.Path},
				{"Created", record.CreatedAt.Local().Format(time.RFC3339)},
				{"Modified", record.ModifiedAt.Local().Format(time.RFC3339)},
			}
			if record.ExternalReference != "" {
				rows = append(rows, []string{"Transfer UUID", record.ExternalReference})
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows))
			if len(record.Metadata) > 0 {
				fmt.Fprintln(out, "Metadata:")
				return printJSON(out, record.Metadata)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit raw JSON")
	return cmd
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var origin string
	var metadataJSON string

	cmd := &cobra.Command{
		Use:   "add <identifier>",
		Short: "Register a delivered package for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"identifier": args[0],
				"origin":     origin,
			}
			if metadataJSON != "" {
				var metadata map[string]any
				if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
					return fmt.Errorf("parse metadata: %w", err)
				}
				body["metadata"] = metadata
			}

			var record sipRecord
			if err := ctx.postJSON(cmd, "/sips", body, &record); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (status %s)\n", record.Identifier, record.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&origin, "origin", "", "Origin pipeline the package came from")
	cmd.Flags().StringVar(&metadataJSON, "metadata", "", "Package metadata as a JSON object")
	return cmd
}
