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

import "errors"

var (
	// ErrSourceRequired is returned when a pipeline is built without a
	// document source.
	ErrSourceRequired = errors.New("document source is required")

	// ErrScorerRequired is returned when the score stage is built without a
	// scorer.
	ErrScorerRequired = errors.New("chunk scorer is required")

	// ErrResolverRequired is returned when the preprocess stage is built
	// without a configuration resolver.
	ErrResolverRequired = errors.New("config resolver is required")

	// ErrInvalidMaxAttempts is returned when retry is configured with a
	// non-positive attempt count.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrNoDocuments is returned when the document source yields nothing to
	// process.
	ErrNoDocuments = errors.New("no documents to process")
)
