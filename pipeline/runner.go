package pipeline

import (
	"context"
	"log/slog"

	"github.com/poiesic/chunkwise/core"
)

// Runner executes stages in order under the uniform stage contract. A failed
// or skipped stage does not abort the run; downstream stages skip themselves
// when the artifacts they need never appeared.
type Runner struct {
	stages []Stage
	logger *slog.Logger
}

// NewRunner creates a runner over an ordered stage list.
func NewRunner(logger *slog.Logger, stages ...Stage) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{stages: stages, logger: logger}
}

// Run executes every stage sequentially and returns one result per stage, in
// execution order.
func (r *Runner) Run(ctx context.Context, run *RunContext) []*core.StageResult {
	r.logger.Info("starting pipeline run",
		"run_id", run.RunID, "product", run.ProductID, "version", run.Version)

	results := make([]*core.StageResult, 0, len(r.stages))
	for _, stage := range r.stages {
		result := runStage(ctx, stage, run, r.logger)
		results = append(results, result)
		r.logger.Info("stage finished",
			"stage", result.Stage,
			"status", result.Status,
			"duration", result.FinishedAt.Sub(result.StartedAt),
			"failed_units", len(result.FailedFiles))
	}
	return results
}
