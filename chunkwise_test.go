package chunkwise

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/chunkwise/config"
	"github.com/poiesic/chunkwise/core"
)

const workspaceManual = `--- Page 1 ---
SAFETY WARNINGS

Disconnect power before servicing the unit. Wear eye protection when
inspecting the drive belt. Never bypass the thermal cutoff switch.

ROUTINE MAINTENANCE

Check the oil level every 200 hours of operation. Replace the intake
filter monthly. Tighten the mounting bolts to 45 Nm after the first week.
`

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "pump_manual.txt"), []byte(workspaceManual), 0644)
	require.NoError(t, err)
	return dir
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWorkspace(t *testing.T) {
	t.Run("create workspace over document directory", func(t *testing.T) {
		ws, err := NewWorkspace(writeDocs(t), WithWorkspaceLogger(quietLogger()))
		require.NoError(t, err)
		require.NotNil(t, ws)
		defer ws.Close()

		assert.NotNil(t, ws.Resolver())
		assert.Nil(t, ws.Store())
		assert.Nil(t, ws.Router())
	})

	t.Run("error with missing directory", func(t *testing.T) {
		ws, err := NewWorkspace(filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
		assert.Nil(t, ws)
	})

	t.Run("in-memory database", func(t *testing.T) {
		ws, err := NewWorkspace(writeDocs(t),
			WithInMemoryDatabase(),
			WithWorkspaceLogger(quietLogger()))
		require.NoError(t, err)
		defer ws.Close()

		assert.NotNil(t, ws.Store())
	})
}

func TestWorkspace_Ingest(t *testing.T) {
	ws, err := NewWorkspace(writeDocs(t),
		WithInMemoryDatabase(),
		WithQualityGates(map[string]float64{"min_secure": 50}),
		WithWorkspaceLogger(quietLogger()))
	require.NoError(t, err)
	defer ws.Close()

	run, results, err := ws.Ingest(context.Background(), "pump-9000", "v1")
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, result := range results {
		assert.Equal(t, core.StageSucceeded, result.Status, result.Stage)
	}

	chunks := run.Chunks()
	require.NotEmpty(t, chunks)
	assert.Len(t, run.Scores(), len(chunks))
	assert.Contains(t, run.Fingerprint(), core.MetricTrustScore)
	require.NotNil(t, run.Policy())
	assert.True(t, run.Policy().Passed)

	// Ingestion persisted through to the store.
	stored, err := ws.Store().GetChunks(context.Background(), "pump-9000", "v1")
	require.NoError(t, err)
	assert.Len(t, stored, len(chunks))
}

func TestWorkspace_ProductGatesApply(t *testing.T) {
	ws, err := NewWorkspace(writeDocs(t),
		WithProduct(&config.ProductSettings{
			QualityGates: map[string]float64{"min_trust_score": 101},
		}),
		WithWorkspaceLogger(quietLogger()))
	require.NoError(t, err)
	defer ws.Close()

	run, results, err := ws.Ingest(context.Background(), "pump-9000", "v1")
	require.NoError(t, err)
	require.Len(t, results, 4)

	// An unreachable threshold fails the gate but not the stage.
	policy := run.Policy()
	require.NotNil(t, policy)
	assert.False(t, policy.Passed)
	assert.Equal(t, core.StageSucceeded, results[3].Status)
}

func TestWorkspace_Close(t *testing.T) {
	ws, err := NewWorkspace(writeDocs(t),
		WithDatabase(filepath.Join(t.TempDir(), "db")),
		WithWorkspaceLogger(quietLogger()))
	require.NoError(t, err)

	assert.NoError(t, ws.Close())
}
