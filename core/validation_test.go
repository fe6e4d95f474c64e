package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() *ChunkRecord {
	return &ChunkRecord{
		ChunkID:    "doc_p1_sintro_c0",
		DocumentID: "doc",
		Filename:   "doc.txt",
		Page:       1,
		Section:    "intro",
		Text:       "Some chunk text.",
		TokenEst:   4,
		ChunkIndex: 0,
		ChunkOf:    1,
		Timestamp:  time.Now().UTC(),
		ContentKey: KeyFromContent("Some chunk text."),
	}
}

func validScore() *ChunkScore {
	metrics := make(MetricSet, 13)
	for _, name := range MetricNames() {
		metrics[name] = 75
	}
	return &ChunkScore{
		ChunkID:    "doc_p1_sintro_c0",
		DocumentID: "doc",
		Metrics:    metrics,
		TrustScore: 75,
	}
}

func TestValidateChunkRecord(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		require.NoError(t, ValidateChunkRecord(validRecord()))
	})

	t.Run("nil record", func(t *testing.T) {
		err := ValidateChunkRecord(nil)
		assert.ErrorIs(t, err, ErrInvalidChunkRecord)
	})

	t.Run("empty chunk id", func(t *testing.T) {
		r := validRecord()
		r.ChunkID = ""
		assert.ErrorIs(t, ValidateChunkRecord(r), ErrEmptyChunkID)
	})

	t.Run("empty document id", func(t *testing.T) {
		r := validRecord()
		r.DocumentID = ""
		assert.ErrorIs(t, ValidateChunkRecord(r), ErrEmptyDocumentID)
	})

	t.Run("empty text", func(t *testing.T) {
		r := validRecord()
		r.Text = ""
		assert.ErrorIs(t, ValidateChunkRecord(r), ErrEmptyText)
	})

	t.Run("chunk index out of bounds", func(t *testing.T) {
		r := validRecord()
		r.ChunkIndex = 3
		r.ChunkOf = 2
		assert.ErrorIs(t, ValidateChunkRecord(r), ErrInvalidChunkRecord)
	})
}

func TestValidateChunkScore(t *testing.T) {
	t.Run("valid score", func(t *testing.T) {
		require.NoError(t, ValidateChunkScore(validScore()))
	})

	t.Run("nil score", func(t *testing.T) {
		assert.ErrorIs(t, ValidateChunkScore(nil), ErrInvalidChunkScore)
	})

	t.Run("missing metric", func(t *testing.T) {
		s := validScore()
		delete(s.Metrics, MetricDiversity)
		assert.ErrorIs(t, ValidateChunkScore(s), ErrMissingMetric)
	})

	t.Run("metric above range", func(t *testing.T) {
		s := validScore()
		s.Metrics[MetricSecure] = 101
		assert.ErrorIs(t, ValidateChunkScore(s), ErrMetricOutOfRange)
	})

	t.Run("metric below range", func(t *testing.T) {
		s := validScore()
		s.Metrics[MetricAccuracy] = -1
		assert.ErrorIs(t, ValidateChunkScore(s), ErrMetricOutOfRange)
	})

	t.Run("trust score out of range", func(t *testing.T) {
		s := validScore()
		s.TrustScore = 100.5
		assert.ErrorIs(t, ValidateChunkScore(s), ErrMetricOutOfRange)
	})
}
