package badger

import "fmt"

// Key prefixes for different data types. Every key is scoped by product and
// version so re-ingesting one product version overwrites exactly its own
// records and nothing else.
const (
	chunkRecordPrefix = "chkrec"
	chunkScorePrefix  = "scorec"
	artifactPrefix    = "artrec"
)

// makeChunkKey generates a key for a chunk record.
// Format: prefix:product:version:chunkID
func makeChunkKey(productID, version, chunkID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s", chunkRecordPrefix, productID, version, chunkID))
}

// makeChunkScanKey generates the iteration prefix for all chunks of a
// product version.
func makeChunkScanKey(productID, version string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", chunkRecordPrefix, productID, version))
}

// makeScoreKey generates a key for a chunk score.
// Format: prefix:product:version:chunkID
func makeScoreKey(productID, version, chunkID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s", chunkScorePrefix, productID, version, chunkID))
}

// makeScoreScanKey generates the iteration prefix for all scores of a
// product version.
func makeScoreScanKey(productID, version string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", chunkScorePrefix, productID, version))
}

// makeArtifactKey generates a key for a named run artifact.
// Format: prefix:product:version:name
func makeArtifactKey(productID, version, name string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s", artifactPrefix, productID, version, name))
}

// makeArtifactScanKey generates the iteration prefix for all artifacts of a
// product version.
func makeArtifactScanKey(productID, version string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", artifactPrefix, productID, version))
}
