package cmd

import (
	"github.com/spf13/cobra"

	"github.com/leadgate/leadgate/cli/internal/seeder"
	"github.com/leadgate/leadgate/cli/pkg/output"
	"github.com/leadgate/leadgate/common/logging"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Submit generated test leads",
	Long: `Generate realistic fake leads and submit them with the profile's keys.

Configuration cascade (priority order):
  1. Command-line flags
  2. ./seeder.yaml (project directory)
  3. ~/.leadctl/seeder.yaml (user directory)
  4. Built-in defaults

Examples:
  leadctl seed --count 100
  leadctl seed --count 1000 --batch-size 100 --exclude tracking
  leadctl seed --seeder-config ./campaign.yaml`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("seeder-config")
	sc, err := seeder.LoadConfig(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("count") {
		sc.Count, _ = flags.GetInt("count")
	}
	if flags.Changed("batch-size") {
		sc.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("interval") {
		sc.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("exclude") {
		sc.Exclude, _ = flags.GetStringSlice("exclude")
	}
	if flags.Changed("event") {
		sc.Event, _ = flags.GetString("event")
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	gw, err := gatewayClient(cmd)
	if err != nil {
		return err
	}
	seed, _ := flags.GetInt64("seed")
	logger := logging.New(logging.ParseLevel("info"), "text").Logger

	runner := seeder.NewRunner(sc, gw, seeder.NewGenerator(seed, sc.Event, sc.Fields), logger)
	sum, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}

	return output.Render(outputFormat(cmd), sum, func() {
		output.Success("Sent %d leads", sum.Sent)
		if sum.Failed > 0 {
			output.Warn("%d leads failed", sum.Failed)
		}
	})
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("seeder-config", "", "seeder config file (default: ./seeder.yaml or ~/.leadctl/seeder.yaml)")
	seedCmd.Flags().Int("count", 10, "number of leads to generate")
	seedCmd.Flags().Int("batch-size", 1, "leads per submission; 1 sends them one by one")
	seedCmd.Flags().Duration("interval", 0, "pause between submissions")
	seedCmd.Flags().StringSlice("exclude", nil, "drivers to skip for every lead (batch submissions)")
	seedCmd.Flags().String("event", "", "tracking event name set on each lead")
	seedCmd.Flags().Int64("seed", 0, "random seed for reproducible leads (0 = random)")
}
