package seeder

import (
	"context"
	"log/slog"
	"time"

	"github.com/leadgate/leadgate/cli/internal/client"
	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/common/signing"
)

// Submitter sends leads to the gateway.
type Submitter interface {
	SubmitLead(ctx context.Context, fields []signing.Param) (string, error)
	SubmitBatch(ctx context.Context, leads []client.BatchLead) ([]string, error)
}

// Summary reports a finished run.
type Summary struct {
	Sent   int
	Failed int
	IDs    []string
}

// Runner handles the lead seeding execution.
type Runner struct {
	Config    *Config
	Submitter Submitter
	Generator *Generator
	Logger    *slog.Logger
	sleep     func(time.Duration)
}

// NewRunner creates a new seeder runner.
func NewRunner(cfg *Config, sub Submitter, gen *Generator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Config: cfg, Submitter: sub, Generator: gen, Logger: logger, sleep: time.Sleep}
}

// Run generates Config.Count leads and submits them. Submission errors are
// counted and logged; only context cancellation stops the run early.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	cfg := r.Config

	r.Logger.Info("Starting lead seeder",
		slog.Int("count", cfg.Count),
		slog.Int("batch_size", cfg.BatchSize),
		slog.Duration("interval", cfg.Interval),
	)

	for start := 0; start < cfg.Count; start += cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		end := min(start+cfg.BatchSize, cfg.Count)

		// Exclusions travel only with batch submissions.
		if cfg.BatchSize == 1 && len(cfg.Exclude) == 0 {
			r.sendOne(ctx, start, &sum)
		} else {
			r.sendBatch(ctx, start, end, &sum)
		}

		if cfg.Interval > 0 && end < cfg.Count {
			r.sleep(cfg.Interval)
		}
	}

	r.Logger.Info("Seeding complete", slog.Int("sent", sum.Sent), slog.Int("failed", sum.Failed))
	return sum, nil
}

func (r *Runner) sendOne(ctx context.Context, index int, sum *Summary) {
	id, err := r.Submitter.SubmitLead(ctx, r.Generator.Lead(index))
	if err != nil {
		sum.Failed++
		r.Logger.Warn("Failed to submit lead", slog.Int("index", index), logging.Error(err))
		return
	}
	sum.Sent++
	sum.IDs = append(sum.IDs, id)
}

func (r *Runner) sendBatch(ctx context.Context, start, end int, sum *Summary) {
	leads := make([]client.BatchLead, 0, end-start)
	for i := start; i < end; i++ {
		leads = append(leads, client.BatchLead{Data: ToMap(r.Generator.Lead(i)), Exclude: r.Config.Exclude})
	}
	ids, err := r.Submitter.SubmitBatch(ctx, leads)
	if err != nil {
		sum.Failed += len(leads)
		r.Logger.Warn("Failed to submit batch", slog.Int("from", start), slog.Int("size", len(leads)), logging.Error(err))
		return
	}
	sum.Sent += len(ids)
	sum.IDs = append(sum.IDs, ids...)
}
