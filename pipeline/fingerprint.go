package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/poiesic/chunkwise/core"
	"github.com/poiesic/chunkwise/storage"
)

// Aggregate computes the run fingerprint: the arithmetic mean of every metric
// that appears in any score, plus the mean trust score. Returns nil for an
// empty input.
func Aggregate(scores []*core.ChunkScore) core.Fingerprint {
	if len(scores) == 0 {
		return nil
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range scores {
		for name, v := range s.Metrics {
			sums[name] += v
			counts[name]++
		}
		sums[core.MetricTrustScore] += s.TrustScore
		counts[core.MetricTrustScore]++
	}

	fp := make(core.Fingerprint, len(sums))
	for name, sum := range sums {
		fp[name] = sum / float64(counts[name])
	}
	return fp
}

// FingerprintStage aggregates the chunk scores into the run-level readiness
// fingerprint and persists it as a run artifact.
type FingerprintStage struct {
	store  storage.RecordStore
	logger *slog.Logger
}

// NewFingerprintStage creates the fingerprint stage. The store is optional.
func NewFingerprintStage(store storage.RecordStore, logger *slog.Logger) *FingerprintStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &FingerprintStage{store: store, logger: logger}
}

// Name implements Stage.
func (s *FingerprintStage) Name() string { return StageFingerprint }

// Requires implements Stage.
func (s *FingerprintStage) Requires() []string { return []string{ArtifactScores} }

// Execute implements Stage.
func (s *FingerprintStage) Execute(ctx context.Context, run *RunContext, result *core.StageResult) {
	fp := Aggregate(run.Scores())
	if fp == nil {
		result.Status = core.StageSkipped
		result.Error = "no scores to aggregate"
		return
	}

	if s.store != nil {
		data, err := json.Marshal(fp)
		if err == nil {
			err = RetryWithBackoff(ctx, func() error {
				return s.store.PutArtifact(ctx, run.ProductID, run.Version, ArtifactFingerprint, data)
			}, 3, 100*time.Millisecond)
		}
		if err != nil {
			result.Status = core.StageFailed
			result.Error = err.Error()
			return
		}
	}

	run.SetFingerprint(fp)
	result.Status = core.StageSucceeded
	result.Metrics = fp
	result.Artifacts = []string{ArtifactFingerprint}
}
