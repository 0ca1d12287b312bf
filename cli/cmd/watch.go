package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/leadgate/leadgate/cli/pkg/output"
	"github.com/leadgate/leadgate/common/messaging"
	"github.com/leadgate/leadgate/common/messaging/nats"
)

// outcome is the relayed delivery outcome.
type outcome struct {
	LeadID     string    `json:"lead_id"`
	System     string    `json:"system"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

var statusColors = map[string]*color.Color{
	"success": color.New(color.FgGreen),
	"failed":  color.New(color.FgRed),
	"retry":   color.New(color.FgYellow),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream delivery outcomes from NATS",
	Long: `Subscribe to the outcomes the gateway relays to NATS and print them as they arrive.

  leadctl watch
  leadctl watch --status failed --nats-url nats://broker:4222`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("nats-url")
		if url == "" {
			url = cfg.NATSURL()
		}
		subject := messaging.SubjectLeadOutcomesAll
		if status, _ := cmd.Flags().GetString("status"); status != "" {
			if _, ok := statusColors[status]; !ok {
				return fmt.Errorf("invalid status %q (want success, failed or retry)", status)
			}
			subject = messaging.OutcomeSubject(status)
		}

		ncfg := nats.DefaultConfig()
		ncfg.URL = url
		ncfg.Name = "leadctl-watch"
		ncfg.MaxReconnects = 5
		nc, err := nats.NewClient(ncfg)
		if err != nil {
			return err
		}
		defer nc.Close()

		format := outputFormat(cmd)
		if _, err := nc.Subscribe(subject, func(_ context.Context, msg *messaging.Message) error {
			return printOutcome(format, msg)
		}); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}

		output.Info("Watching %s on %s (Ctrl-C to stop)", subject, url)
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		return nil
	},
}

func printOutcome(format string, msg *messaging.Message) error {
	var o outcome
	if err := json.Unmarshal(msg.Data, &o); err != nil {
		return fmt.Errorf("decode outcome on %s: %w", msg.Subject, err)
	}
	if format == output.FormatJSON {
		return json.NewEncoder(output.Stdout).Encode(o)
	}

	c, ok := statusColors[o.Status]
	if !ok {
		c = color.New(color.Reset)
	}
	fmt.Fprintf(output.Stdout, "%s  %-8s %-10s %s  %s\n",
		o.OccurredAt.Format(time.RFC3339), c.Sprint(o.Status), o.System, o.LeadID, truncate(o.Message, 80))
	return nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("nats-url", "", "NATS server URL (default from config)")
	watchCmd.Flags().String("status", "", "only show outcomes with this status")
}
