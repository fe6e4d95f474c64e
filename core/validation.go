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


package core

import "fmt"

// ValidateChunkRecord validates a ChunkRecord according to domain rules.
//
// Validation rules:
//   - ChunkID and DocumentID must not be empty
//   - Text must not be empty
//   - ChunkIndex must be within [0, ChunkOf)
//
// NOT validated (populated by collaborators):
//   - Audience (may be empty until audience rules run)
//   - ProductID and scope fields (set per run)
func ValidateChunkRecord(record *ChunkRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidChunkRecord)
	}

	if record.ChunkID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrEmptyChunkID)
	}

	if record.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrEmptyDocumentID)
	}

	if record.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrEmptyText)
	}

	if record.ChunkOf > 0 && (record.ChunkIndex < 0 || record.ChunkIndex >= record.ChunkOf) {
		return fmt.Errorf("%w: chunk index %d outside [0,%d)",
			ErrInvalidChunkRecord, record.ChunkIndex, record.ChunkOf)
	}

	return nil
}

// ValidateChunkScore validates a ChunkScore according to domain rules.
//
// Validation rules:
//   - ChunkID must not be empty
//   - All 13 base metrics must be present
//   - Every metric and the trust score must lie in [0,100]
func ValidateChunkScore(score *ChunkScore) error {
	if score == nil {
		return fmt.Errorf("%w: score is nil", ErrInvalidChunkScore)
	}

	if score.ChunkID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkScore, ErrEmptyChunkID)
	}

	for _, name := range MetricNames() {
		v, ok := score.Metrics[name]
		if !ok {
			return fmt.Errorf("%w: %w: %s", ErrInvalidChunkScore, ErrMissingMetric, name)
		}
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: %w: %s=%v", ErrInvalidChunkScore, ErrMetricOutOfRange, name, v)
		}
	}

	if score.TrustScore < 0 || score.TrustScore > 100 {
		return fmt.Errorf("%w: %w: %s=%v",
			ErrInvalidChunkScore, ErrMetricOutOfRange, MetricTrustScore, score.TrustScore)
	}

	return nil
}
