package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadgate/leadgate/cli/internal/client"
	"github.com/leadgate/leadgate/cli/pkg/output"
)

var sendCmd = &cobra.Command{
	Use:   "send [key=value ...]",
	Short: "Submit a signed lead",
	Long: `Submit one lead built from key=value arguments, or a batch read from a JSON file.

  leadctl send first_name=Ada email=ada@example.com
  leadctl send --batch leads.json

A batch file is an array of {"data": {...}, "exclude": ["driver"]} objects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := gatewayClient(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		var ids []string
		if batchFile, _ := cmd.Flags().GetString("batch"); batchFile != "" {
			if len(args) > 0 {
				return fmt.Errorf("--batch cannot be combined with key=value fields")
			}
			leads, err := readBatch(batchFile)
			if err != nil {
				return err
			}
			if ids, err = gw.SubmitBatch(ctx, leads); err != nil {
				return err
			}
		} else {
			fields, err := parseFields(args)
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return fmt.Errorf("no fields given")
			}
			id, err := gw.SubmitLead(ctx, fields)
			if err != nil {
				return err
			}
			ids = []string{id}
		}

		showStatus, _ := cmd.Flags().GetBool("status")
		if !showStatus {
			return output.Render(outputFormat(cmd), map[string][]string{"ids": ids}, func() {
				for _, id := range ids {
					output.Success("Accepted lead %s", id)
				}
			})
		}

		var records []client.Request
		for _, id := range ids {
			reqs, err := gw.Requests(ctx, id)
			if err != nil {
				return err
			}
			records = append(records, reqs...)
		}
		return renderRequests(cmd, records)
	},
}

var requestsCmd = &cobra.Command{
	Use:   "requests [lead-id]",
	Short: "Show delivery records",
	Long:  "List the per-driver delivery status of one lead, or of all the application's leads",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := gatewayClient(cmd)
		if err != nil {
			return err
		}
		leadID := ""
		if len(args) == 1 {
			leadID = args[0]
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		reqs, err := gw.Requests(ctx, leadID)
		if err != nil {
			return err
		}
		return renderRequests(cmd, reqs)
	},
}

func readBatch(path string) ([]client.BatchLead, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var leads []client.BatchLead
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return leads, nil
}

func renderRequests(cmd *cobra.Command, reqs []client.Request) error {
	return output.Render(outputFormat(cmd), reqs, func() {
		if len(reqs) == 0 {
			output.Info("No delivery records")
			return
		}
		table := output.NewTable("LEAD", "SYSTEM", "STATUS", "UPDATED", "MESSAGE")
		for _, r := range reqs {
			table.AddRow(r.LeadID, r.System, r.Status, r.UpdatedAt.Format(time.RFC3339), truncate(r.Message, 60))
		}
		table.Render()
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	rootCmd.AddCommand(sendCmd, requestsCmd)
	sendCmd.Flags().String("batch", "", "JSON file with an array of leads to submit as one batch")
	sendCmd.Flags().Bool("status", false, "print the delivery records after submission")
}
