package storage

import (
	"context"

	"github.com/poiesic/chunkwise/core"
)

// DocumentSource supplies raw document text to the preprocessing stage.
type DocumentSource interface {
	// List returns the document filenames available from this source.
	List(ctx context.Context) ([]string, error)

	// GetRawText returns the raw text of one document.
	// Returns ErrNotFound if the document doesn't exist.
	GetRawText(ctx context.Context, filename string) (string, error)
}

// ChunkRepository stores processed chunk records. Writes are idempotent:
// re-putting a chunk with the same ID within a product version overwrites the
// previous value.
type ChunkRepository interface {
	// PutChunks stores one or more chunk records for a product version.
	PutChunks(ctx context.Context, productID, version string, chunks ...*core.ChunkRecord) error

	// GetChunk retrieves a single chunk record by its chunk ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, productID, version, chunkID string) (*core.ChunkRecord, error)

	// GetChunks retrieves all chunk records for a product version, ordered
	// by chunk ID.
	GetChunks(ctx context.Context, productID, version string) ([]*core.ChunkRecord, error)
}

// ScoreRepository stores per-chunk trust scores.
type ScoreRepository interface {
	// PutScores stores one or more chunk scores for a product version.
	PutScores(ctx context.Context, productID, version string, scores ...*core.ChunkScore) error

	// GetScore retrieves the score for a single chunk.
	// Returns ErrNotFound if no score exists for the chunk.
	GetScore(ctx context.Context, productID, version, chunkID string) (*core.ChunkScore, error)

	// GetScores retrieves all chunk scores for a product version, ordered
	// by chunk ID.
	GetScores(ctx context.Context, productID, version string) ([]*core.ChunkScore, error)
}

// ArtifactRepository stores named run artifacts such as fingerprints, policy
// results, and stage summaries as opaque bytes.
type ArtifactRepository interface {
	// PutArtifact stores a named artifact for a product version.
	PutArtifact(ctx context.Context, productID, version, name string, data []byte) error

	// GetArtifact retrieves a named artifact.
	// Returns ErrNotFound if the artifact doesn't exist.
	GetArtifact(ctx context.Context, productID, version, name string) ([]byte, error)

	// ListArtifacts returns the artifact names stored for a product version.
	ListArtifacts(ctx context.Context, productID, version string) ([]string, error)
}

// RecordStore is the full persistence surface used by the pipeline.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	ChunkRepository
	ScoreRepository
	ArtifactRepository

	// Close closes the storage backend and releases resources.
	Close() error
}
