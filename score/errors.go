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


package score

import "errors"

var (
	// ErrNilChunk is returned when a scorer receives a nil chunk record.
	ErrNilChunk = errors.New("chunk record is nil")

	// ErrTokenizerUnavailable is returned when the token encoding cannot be
	// loaded, typically because the encoding file is not cached locally.
	ErrTokenizerUnavailable = errors.New("tokenizer unavailable")
)
