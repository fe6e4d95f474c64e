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

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunkRecord indicates a ChunkRecord failed validation.
	ErrInvalidChunkRecord = errors.New("invalid chunk record")

	// ErrInvalidChunkScore indicates a ChunkScore failed validation.
	ErrInvalidChunkScore = errors.New("invalid chunk score")

	// ErrEmptyChunkID indicates the ChunkID field is empty.
	ErrEmptyChunkID = errors.New("chunk id cannot be empty")

	// ErrEmptyDocumentID indicates the DocumentID field is empty.
	ErrEmptyDocumentID = errors.New("document id cannot be empty")

	// ErrEmptyText indicates the Text field is empty.
	ErrEmptyText = errors.New("chunk text cannot be empty")

	// ErrMetricOutOfRange indicates a metric value is outside the 0-100 range.
	ErrMetricOutOfRange = errors.New("metric value out of range")

	// ErrMissingMetric indicates a required metric name is absent from a score.
	ErrMissingMetric = errors.New("missing required metric")
)
