package score

import (
	"context"
	"log/slog"

	"github.com/poiesic/chunkwise/core"
)

// Fallback wraps a preferred scorer with a backup. Errors from the preferred
// scorer are logged and absorbed; the backup's result is returned instead, so
// scoring degrades rather than failing the stage.
type Fallback struct {
	preferred ChunkScorer
	backup    ChunkScorer
	logger    *slog.Logger
}

// NewFallback builds the decorator. The backup should be a scorer that cannot
// fail, such as the heuristic scorer.
func NewFallback(preferred, backup ChunkScorer, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{preferred: preferred, backup: backup, logger: logger}
}

// Name implements ChunkScorer.
func (f *Fallback) Name() string { return f.preferred.Name() }

// Score implements ChunkScorer.
func (f *Fallback) Score(ctx context.Context, chunk *core.ChunkRecord) (*core.ChunkScore, error) {
	scored, err := f.preferred.Score(ctx, chunk)
	if err == nil {
		return scored, nil
	}
	f.logger.Warn("preferred scorer failed, using fallback",
		"scorer", f.preferred.Name(), "fallback", f.backup.Name(), "err", err)
	return f.backup.Score(ctx, chunk)
}
