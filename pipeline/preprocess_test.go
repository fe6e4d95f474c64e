package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/chunkwise/config"
	"github.com/poiesic/chunkwise/core"
	"github.com/poiesic/chunkwise/playbook"
	"github.com/poiesic/chunkwise/storage"
)

// brokenSource fails reads for the named files.
type brokenSource struct {
	files  mapSource
	broken map[string]bool
}

func (b *brokenSource) List(ctx context.Context) ([]string, error) {
	names, _ := b.files.List(ctx)
	for name := range b.broken {
		names = append(names, name)
	}
	return names, nil
}

func (b *brokenSource) GetRawText(ctx context.Context, filename string) (string, error) {
	if b.broken[filename] {
		return "", storage.ErrNotFound
	}
	return b.files.GetRawText(ctx, filename)
}

func TestPreprocessStage_ChunksDocuments(t *testing.T) {
	source := mapSource{"pump_manual.txt": manualText}
	stage, err := NewPreprocessStage(source, testResolver(),
		WithPreprocessLogger(testLogger()))
	require.NoError(t, err)

	run := NewRunContext("pump-9000", "v1")
	result := runStage(context.Background(), stage, run, testLogger())

	require.Equal(t, core.StageSucceeded, result.Status)
	assert.Equal(t, []string{ArtifactChunks}, result.Artifacts)
	assert.Empty(t, result.FailedFiles)
	assert.Equal(t, 1.0, result.Metrics["files_total"])
	assert.Equal(t, 0.0, result.Metrics["files_failed"])

	chunks := run.Chunks()
	require.NotEmpty(t, chunks)

	sections := map[string]bool{}
	for _, chunk := range chunks {
		require.NoError(t, core.ValidateChunkRecord(chunk))
		assert.Equal(t, "pump_manual", chunk.DocumentID)
		assert.Equal(t, "pump_manual.txt", chunk.Filename)
		assert.True(t, strings.HasPrefix(chunk.ChunkID, "pump_manual_p1_s"), chunk.ChunkID)
		assert.Equal(t, core.KeyFromContent(chunk.Text), chunk.ContentKey)
		assert.Positive(t, chunk.TokenEst)
		sections[chunk.Section] = true
	}
	assert.True(t, sections["safety_warnings"])
	assert.True(t, sections["routine_maintenance"])
}

func TestPreprocessStage_FileFailuresAreIsolated(t *testing.T) {
	source := &brokenSource{
		files:  mapSource{"good_one.txt": manualText, "good_two.txt": manualText},
		broken: map[string]bool{"corrupt.txt": true},
	}
	stage, err := NewPreprocessStage(source, testResolver(),
		WithPreprocessLogger(testLogger()),
		WithPreprocessPoolSize(3))
	require.NoError(t, err)

	run := NewRunContext("pump-9000", "v1")
	result := runStage(context.Background(), stage, run, testLogger())

	// One bad file out of three: the stage still succeeds, the failure is
	// reported per file.
	assert.Equal(t, core.StageSucceeded, result.Status)
	assert.Equal(t, []string{"corrupt.txt"}, result.FailedFiles)
	assert.Equal(t, 3.0, result.Metrics["files_total"])
	assert.Equal(t, 1.0, result.Metrics["files_failed"])
	assert.NotEmpty(t, run.Chunks())
}

func TestPreprocessStage_AllFilesFailing(t *testing.T) {
	source := &brokenSource{
		files:  mapSource{},
		broken: map[string]bool{"a.txt": true, "b.txt": true},
	}
	stage, err := NewPreprocessStage(source, testResolver(),
		WithPreprocessLogger(testLogger()))
	require.NoError(t, err)

	run := NewRunContext("pump-9000", "v1")
	result := runStage(context.Background(), stage, run, testLogger())

	assert.Equal(t, core.StageFailed, result.Status)
	assert.Len(t, result.FailedFiles, 2)
	assert.Nil(t, run.Chunks())
}

func TestPreprocessStage_EmptySourceFails(t *testing.T) {
	stage, err := NewPreprocessStage(mapSource{}, testResolver(),
		WithPreprocessLogger(testLogger()))
	require.NoError(t, err)

	result := runStage(context.Background(), stage, NewRunContext("p", "v1"), testLogger())

	assert.Equal(t, core.StageFailed, result.Status)
	assert.Contains(t, result.Error, "no documents")
}

func TestPreprocessStage_PlaybookDrivesChunking(t *testing.T) {
	// A sentence-strategy playbook with a small budget forces multiple
	// chunks per section.
	resolver := config.NewResolver(staticPlaybooks{
		"tech": {
			ID: "TECH",
			Chunking: playbook.ChunkingDefaults{
				MaxTokens:        config.IntPtr(12),
				HardOverlapChars: config.IntPtr(0),
				Strategy:         config.StrPtr("sentence"),
			},
		},
	}, config.WithLogger(testLogger()))

	run := &config.RunConf{ChunkingValues: config.ChunkingValues{
		MinChunkSize: config.IntPtr(0),
	}}

	stage, err := NewPreprocessStage(mapSource{"pump_manual.txt": manualText}, resolver,
		WithPreprocessLogger(testLogger()),
		WithRunConf(run))
	require.NoError(t, err)

	runCtx := NewRunContext("pump-9000", "v1")
	result := runStage(context.Background(), stage, runCtx, testLogger())

	require.Equal(t, core.StageSucceeded, result.Status)
	chunks := runCtx.Chunks()
	require.NotEmpty(t, chunks)

	perSection := map[string]int{}
	for _, chunk := range chunks {
		perSection[chunk.Section]++
		assert.Equal(t, perSection[chunk.Section]-1, chunk.ChunkIndex)
	}
	assert.Greater(t, perSection["safety_warnings"], 1)
	for _, chunk := range chunks {
		assert.Equal(t, perSection[chunk.Section], chunk.ChunkOf)
	}
}

func TestPreprocessStage_RequiresSourceAndResolver(t *testing.T) {
	_, err := NewPreprocessStage(nil, testResolver())
	assert.ErrorIs(t, err, ErrSourceRequired)

	_, err = NewPreprocessStage(mapSource{}, nil)
	assert.ErrorIs(t, err, ErrResolverRequired)
}

func TestPreprocessStage_AudienceRulesApplied(t *testing.T) {
	resolver := config.NewResolver(staticPlaybooks{
		"tech": {
			ID: "TECH",
			AudienceRules: []playbook.AudienceRule{
				{Pattern: "safety", Audience: "all_users"},
				{Pattern: "maintenance", Audience: "technician"},
			},
		},
	}, config.WithLogger(testLogger()))

	stage, err := NewPreprocessStage(mapSource{"pump_manual.txt": manualText}, resolver,
		WithPreprocessLogger(testLogger()))
	require.NoError(t, err)

	run := NewRunContext("pump-9000", "v1")
	result := runStage(context.Background(), stage, run, testLogger())
	require.Equal(t, core.StageSucceeded, result.Status)

	byAudience := map[string]int{}
	for _, chunk := range run.Chunks() {
		byAudience[chunk.Audience]++
	}
	assert.Positive(t, byAudience["all_users"])
	assert.Positive(t, byAudience["technician"])
}
