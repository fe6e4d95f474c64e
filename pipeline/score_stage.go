// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package pipeline

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/chunkwise/core"
	"github.com/poiesic/chunkwise/score"
	"github.com/poiesic/chunkwise/storage"
)

// ScoreStage computes trust metrics for every chunk produced by
// preprocessing. Chunks are scored concurrently and fail independently; the
// stage fails only when no chunk could be scored.
type ScoreStage struct {
	scorer score.ChunkScorer
	store  storage.RecordStore

	poolSize       int
	retryAttempts  int
	retryDelay     time.Duration
	progressWriter io.Writer
	logger         *slog.Logger
}

// ScoreOption configures a ScoreStage.
type ScoreOption func(*ScoreStage) error

// WithScoreStore persists chunk scores as they are produced.
func WithScoreStore(store storage.RecordStore) ScoreOption {
	return func(s *ScoreStage) error {
		s.store = store
		return nil
	}
}

// WithScorePoolSize sets the chunk worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithScorePoolSize(size int) ScoreOption {
	return func(s *ScoreStage) error {
		if size >= 1 {
			s.poolSize = size
		}
		return nil
	}
}

// WithScoreProgress writes a progress line to w as chunks are scored.
func WithScoreProgress(w io.Writer) ScoreOption {
	return func(s *ScoreStage) error {
		s.progressWriter = w
		return nil
	}
}

// WithScoreLogger sets a custom logger.
// Default is slog.Default().
func WithScoreLogger(logger *slog.Logger) ScoreOption {
	return func(s *ScoreStage) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// NewScoreStage creates the scoring stage.
func NewScoreStage(scorer score.ChunkScorer, opts ...ScoreOption) (*ScoreStage, error) {
	if scorer == nil {
		return nil, ErrScorerRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	s := &ScoreStage{
		scorer:        scorer,
		poolSize:      poolSize,
		retryAttempts: 3,
		retryDelay:    100 * time.Millisecond,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name implements Stage.
func (s *ScoreStage) Name() string { return StageScore }

// Requires implements Stage.
func (s *ScoreStage) Requires() []string { return []string{ArtifactChunks} }

// Execute implements Stage.
func (s *ScoreStage) Execute(ctx context.Context, run *RunContext, result *core.StageResult) {
	chunks := run.Chunks()

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		result.Status = core.StageFailed
		result.Error = err.Error()
		return
	}
	defer pool.Release()

	var tracker *ProgressTracker
	if s.progressWriter != nil {
		tracker = NewProgressTracker(s.progressWriter, len(chunks), 10)
	}

	var (
		mu     sync.Mutex
		scores []*core.ChunkScore
		failed []string
		wg     sync.WaitGroup
	)

	for _, chunk := range chunks {
		chunk := chunk
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			scored, err := s.scorer.Score(ctx, chunk)
			if tracker != nil {
				tracker.Increment(1)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("failed to score chunk", "chunk", chunk.ChunkID, "err", err)
				failed = append(failed, chunk.ChunkID)
				return
			}
			scores = append(scores, scored)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			failed = append(failed, chunk.ChunkID)
			mu.Unlock()
		}
	}
	wg.Wait()

	if tracker != nil {
		tracker.Finish()
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].ChunkID < scores[j].ChunkID })
	sort.Strings(failed)

	result.Metrics = map[string]float64{
		"chunks_total":  float64(len(chunks)),
		"chunks_failed": float64(len(failed)),
	}
	result.FailedFiles = failed

	if len(scores) == 0 {
		result.Status = core.StageFailed
		result.Error = "no chunks could be scored"
		return
	}

	if s.store != nil {
		err := RetryWithBackoff(ctx, func() error {
			return s.store.PutScores(ctx, run.ProductID, run.Version, scores...)
		}, s.retryAttempts, s.retryDelay)
		if err != nil {
			result.Status = core.StageFailed
			result.Error = err.Error()
			return
		}
	}

	run.SetScores(scores)
	result.Status = core.StageSucceeded
	result.Artifacts = []string{ArtifactScores}
}
