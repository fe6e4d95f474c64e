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


package prep

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunking strategy names accepted by the Chunker.
const (
	StrategySentence  = "sentence"
	StrategyFixedSize = "fixed_size"
	StrategyCharacter = "character"
	StrategyRecursive = "recursive"
)

// bytesPerToken converts the token budget into a character budget for the
// character strategies.
const bytesPerToken = 4

// Chunker splits section bodies into chunks under a token budget.
//
// The sentence strategy accumulates whole sentences greedily and seeds each
// new chunk with trailing overlap sentences; any chunk still over budget
// (a single oversized sentence) is forced through character chunking and is
// bounded by the character budget instead. The character strategies emit
// fixed windows of maxTokens*4 bytes advancing by window minus overlap.
type Chunker struct {
	maxTokens        int
	overlapSentences int
	overlapChars     int
	strategy         string
	estimate         Estimator
	logger           *slog.Logger
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithStrategy selects the chunking strategy. Default is "fixed_size".
func WithStrategy(strategy string) ChunkerOption {
	return func(c *Chunker) {
		if strategy != "" {
			c.strategy = strategy
		}
	}
}

// WithOverlapSentences sets how many trailing sentences seed the next chunk
// in the sentence strategy. Default is 1.
func WithOverlapSentences(n int) ChunkerOption {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlapSentences = n
		}
	}
}

// WithOverlapChars sets the character overlap for the character strategies.
// Default is 200.
func WithOverlapChars(n int) ChunkerOption {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlapChars = n
		}
	}
}

// WithEstimator replaces the token estimator.
func WithEstimator(e Estimator) ChunkerOption {
	return func(c *Chunker) {
		if e != nil {
			c.estimate = e
		}
	}
}

// WithChunkerLogger sets a custom logger. Default is slog.Default().
func WithChunkerLogger(logger *slog.Logger) ChunkerOption {
	return func(c *Chunker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChunker creates a Chunker with the given token budget.
func NewChunker(maxTokens int, opts ...ChunkerOption) *Chunker {
	if maxTokens < 1 {
		maxTokens = 1
	}
	c := &Chunker{
		maxTokens:        maxTokens,
		overlapSentences: 1,
		overlapChars:     200,
		strategy:         StrategyFixedSize,
		estimate:         EstimateTokens,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Split chunks text with the configured strategy. Unknown strategies fall
// back to fixed-size character chunking.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	switch c.strategy {
	case StrategySentence:
		return c.chunkBySentence(text)
	case StrategyRecursive:
		return c.chunkRecursive(text)
	default:
		return c.chunkByChars(text)
	}
}

// chunkBySentence greedily packs sentences under the token budget, seeding
// each subsequent chunk with the configured sentence overlap.
func (c *Chunker) chunkBySentence(text string) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var buf []string

	for _, sentence := range sentences {
		if len(buf) > 0 && c.estimate(joined(buf, sentence)) > c.maxTokens {
			chunks = append(chunks, strings.Join(buf, " "))
			buf = c.seedOverlap(buf, sentence)
		}
		buf = append(buf, sentence)
	}
	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, " "))
	}

	// A chunk can still exceed the budget only when one sentence alone does;
	// force it through character chunking so downstream token limits hold.
	var out []string
	for _, chunk := range chunks {
		if c.estimate(chunk) > c.maxTokens {
			c.logger.Debug("forcing oversized chunk through character chunking",
				"tokens", c.estimate(chunk), "budget", c.maxTokens)
			out = append(out, c.chunkByChars(chunk)...)
			continue
		}
		out = append(out, chunk)
	}
	return out
}

// seedOverlap builds the next buffer from the trailing overlap sentences,
// dropping leading seeds while the seed plus the incoming sentence would
// already exceed the budget.
func (c *Chunker) seedOverlap(buf []string, next string) []string {
	start := len(buf) - c.overlapSentences
	if start < 0 {
		start = 0
	}
	seed := append([]string(nil), buf[start:]...)
	for len(seed) > 0 && c.estimate(joined(seed, next)) > c.maxTokens {
		seed = seed[1:]
	}
	return seed
}

// chunkByChars emits fixed windows of maxTokens*4 bytes, advancing by the
// window size minus the character overlap, always at least one byte. Window
// boundaries snap back to rune starts so multi-byte text never splits
// mid-rune.
func (c *Chunker) chunkByChars(text string) []string {
	window := c.maxTokens * bytesPerToken
	step := window - c.overlapChars
	if step < 1 {
		step = 1
	}

	var out []string
	for start := 0; start < len(text); start += step {
		end := start + window
		if end > len(text) {
			end = len(text)
		}
		from := runeStart(text, start)
		end = runeStart(text, end)
		if piece := strings.TrimSpace(text[from:end]); piece != "" {
			out = append(out, piece)
		}
		if start+window >= len(text) {
			break
		}
	}
	return out
}

// runeStart backs i up to the nearest rune boundary at or before it.
func runeStart(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// chunkRecursive delegates to the langchaingo recursive character splitter
// with the same size and overlap mapping. Splitter errors degrade to the
// character strategy.
func (c *Chunker) chunkRecursive(text string) []string {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.maxTokens*bytesPerToken),
		textsplitter.WithChunkOverlap(c.overlapChars),
	)
	pieces, err := splitter.SplitText(text)
	if err != nil {
		c.logger.Warn("recursive splitter failed, falling back to character chunking", "err", err)
		return c.chunkByChars(text)
	}

	var out []string
	for _, piece := range pieces {
		if piece = strings.TrimSpace(piece); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// MaxTokens returns the configured token budget.
func (c *Chunker) MaxTokens() int {
	return c.maxTokens
}

func joined(buf []string, next string) string {
	return strings.Join(buf, " ") + " " + next
}
