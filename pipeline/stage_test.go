package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/chunkwise/core"
)

type stubStage struct {
	name     string
	requires []string
	execute  func(ctx context.Context, run *RunContext, result *core.StageResult)
}

func (s *stubStage) Name() string       { return s.name }
func (s *stubStage) Requires() []string { return s.requires }
func (s *stubStage) Execute(ctx context.Context, run *RunContext, result *core.StageResult) {
	s.execute(ctx, run, result)
}

func TestRunStage_SetsNameAndTimestamps(t *testing.T) {
	stage := &stubStage{
		name: "noop",
		execute: func(_ context.Context, _ *RunContext, result *core.StageResult) {
			result.Status = core.StageSucceeded
		},
	}

	result := runStage(context.Background(), stage, NewRunContext("p", "v1"), testLogger())

	assert.Equal(t, "noop", result.Stage)
	assert.Equal(t, core.StageSucceeded, result.Status)
	assert.True(t, result.Succeeded())
	assert.False(t, result.StartedAt.IsZero())
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestRunStage_SkipsOnMissingArtifact(t *testing.T) {
	executed := false
	stage := &stubStage{
		name:     "needs-chunks",
		requires: []string{ArtifactChunks},
		execute: func(_ context.Context, _ *RunContext, result *core.StageResult) {
			executed = true
		},
	}

	result := runStage(context.Background(), stage, NewRunContext("p", "v1"), testLogger())

	assert.Equal(t, core.StageSkipped, result.Status)
	assert.Contains(t, result.Error, ArtifactChunks)
	assert.False(t, executed)
}

func TestRunStage_ContainsPanic(t *testing.T) {
	stage := &stubStage{
		name: "explosive",
		execute: func(_ context.Context, _ *RunContext, _ *core.StageResult) {
			panic("boom")
		},
	}

	var result *core.StageResult
	require.NotPanics(t, func() {
		result = runStage(context.Background(), stage, NewRunContext("p", "v1"), testLogger())
	})

	assert.Equal(t, core.StageFailed, result.Status)
	assert.Contains(t, result.Error, "boom")
	assert.False(t, result.FinishedAt.IsZero())
}

func TestRunContext_HasArtifact(t *testing.T) {
	run := NewRunContext("p", "v1")
	assert.False(t, run.HasArtifact(ArtifactChunks))
	assert.False(t, run.HasArtifact("unknown"))

	run.SetChunks([]*core.ChunkRecord{{ChunkID: "c0"}})
	assert.True(t, run.HasArtifact(ArtifactChunks))

	run.SetPolicy(&core.PolicyResult{Passed: true})
	assert.True(t, run.HasArtifact(ArtifactPolicy))
}

func TestNewRunContext_UniqueRunIDs(t *testing.T) {
	a := NewRunContext("p", "v1")
	b := NewRunContext("p", "v1")
	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
}
