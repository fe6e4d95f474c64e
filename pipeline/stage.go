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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/chunkwise/core"
)

// Stage names reported in StageResult.Stage.
const (
	StagePreprocess  = "preprocess"
	StageScore       = "score"
	StageFingerprint = "fingerprint"
	StagePolicy      = "policy"
)

// Artifact names exchanged between stages through the RunContext.
const (
	ArtifactChunks      = "chunks"
	ArtifactScores      = "scores"
	ArtifactFingerprint = "fingerprint"
	ArtifactPolicy      = "policy"
)

// Stage is one pipeline step. Execute fills the pre-initialized result;
// required-artifact checks and panic containment happen in the runner, so
// implementations only handle their own domain.
type Stage interface {
	// Name identifies the stage in results and logs.
	Name() string

	// Requires lists the run artifacts that must exist before the stage can
	// execute. The runner skips the stage when any is missing.
	Requires() []string

	// Execute runs the stage against the run context, setting Status,
	// Metrics, Artifacts, FailedFiles, and Error on the result.
	Execute(ctx context.Context, run *RunContext, result *core.StageResult)
}

// RunContext carries the identity of one pipeline run and the artifacts
// stages hand to each other. Safe for concurrent use by stage workers.
type RunContext struct {
	RunID     string
	ProductID string
	Version   string

	mu          sync.RWMutex
	chunks      []*core.ChunkRecord
	scores      []*core.ChunkScore
	fingerprint core.Fingerprint
	policy      *core.PolicyResult
}

// NewRunContext creates a run context with a fresh run ID.
func NewRunContext(productID, version string) *RunContext {
	return &RunContext{
		RunID:     uuid.NewString(),
		ProductID: productID,
		Version:   version,
	}
}

// SetChunks publishes the preprocessing output.
func (r *RunContext) SetChunks(chunks []*core.ChunkRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = chunks
}

// Chunks returns the preprocessing output, or nil if preprocessing has not
// produced any.
func (r *RunContext) Chunks() []*core.ChunkRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chunks
}

// SetScores publishes the scoring output.
func (r *RunContext) SetScores(scores []*core.ChunkScore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = scores
}

// Scores returns the scoring output.
func (r *RunContext) Scores() []*core.ChunkScore {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scores
}

// SetFingerprint publishes the run fingerprint.
func (r *RunContext) SetFingerprint(fp core.Fingerprint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fingerprint = fp
}

// Fingerprint returns the run fingerprint.
func (r *RunContext) Fingerprint() core.Fingerprint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fingerprint
}

// SetPolicy publishes the policy verdict.
func (r *RunContext) SetPolicy(result *core.PolicyResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = result
}

// Policy returns the policy verdict.
func (r *RunContext) Policy() *core.PolicyResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy
}

// HasArtifact reports whether a named artifact has been produced.
func (r *RunContext) HasArtifact(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch name {
	case ArtifactChunks:
		return len(r.chunks) > 0
	case ArtifactScores:
		return len(r.scores) > 0
	case ArtifactFingerprint:
		return len(r.fingerprint) > 0
	case ArtifactPolicy:
		return r.policy != nil
	}
	return false
}

// runStage applies the uniform stage contract: the result always carries the
// stage name and timestamps, missing inputs skip the stage, and a panicking
// stage is contained as FAILED instead of taking down the run.
func runStage(ctx context.Context, stage Stage, run *RunContext, logger *slog.Logger) (result *core.StageResult) {
	result = &core.StageResult{
		Stage:     stage.Name(),
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("stage panicked", "stage", stage.Name(), "panic", r)
			result.Status = core.StageFailed
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.FinishedAt = time.Now().UTC()
	}()

	for _, name := range stage.Requires() {
		if !run.HasArtifact(name) {
			logger.Info("skipping stage, required artifact missing",
				"stage", stage.Name(), "artifact", name)
			result.Status = core.StageSkipped
			result.Error = fmt.Sprintf("missing artifact %q", name)
			return result
		}
	}

	stage.Execute(ctx, run, result)
	return result
}
