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

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/poiesic/chunkwise/core"
)

// TokenizerScorerName identifies tokenizer-backed scores in storage.
const TokenizerScorerName = "tokenizer"

// DefaultEncoding is the BPE encoding used for exact token counts.
const DefaultEncoding = "cl100k_base"

// TokenizerScorer refines the heuristic metrics with exact BPE token counts.
// Token_Count uses the real count instead of the character estimate, and
// GPT_Confidence is adjusted by token density, a proxy for how natural the
// text looks to the model's vocabulary.
type TokenizerScorer struct {
	encoding *tiktoken.Tiktoken
	base     *HeuristicScorer
	weights  Weights
}

// TokenizerOption configures a TokenizerScorer.
type TokenizerOption func(*TokenizerScorer)

// WithTokenizerWeights replaces the trust-score weighting table.
func WithTokenizerWeights(w Weights) TokenizerOption {
	return func(s *TokenizerScorer) {
		if w != nil {
			s.weights = w
		}
	}
}

// WithBaseScorer replaces the heuristic scorer used for the statistical
// metrics.
func WithBaseScorer(base *HeuristicScorer) TokenizerOption {
	return func(s *TokenizerScorer) {
		if base != nil {
			s.base = base
		}
	}
}

// NewTokenizerScorer loads the BPE encoding and builds the scorer. Loading
// fetches the encoding file unless it is already cached, so this fails in
// offline environments; callers should fall back to the heuristic scorer.
func NewTokenizerScorer(targetTokens int, opts ...TokenizerOption) (*TokenizerScorer, error) {
	encoding, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenizerUnavailable, err)
	}

	s := &TokenizerScorer{
		encoding: encoding,
		base:     NewHeuristicScorer(WithTargetTokens(targetTokens)),
		weights:  DefaultWeights(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements ChunkScorer.
func (s *TokenizerScorer) Name() string { return TokenizerScorerName }

// Score implements ChunkScorer.
func (s *TokenizerScorer) Score(_ context.Context, chunk *core.ChunkRecord) (*core.ChunkScore, error) {
	if chunk == nil {
		return nil, ErrNilChunk
	}

	metrics := s.base.Metrics(chunk)

	tokens := s.encoding.Encode(chunk.Text, nil, nil)
	metrics[core.MetricTokenCount] = TokenCountScore(len(tokens), s.base.targetTokens)
	metrics[core.MetricGPTConfidence] = s.densityConfidence(chunk.Text, len(tokens), metrics[core.MetricGPTConfidence])
	metrics[core.MetricKnowledgeBaseReady] = kbReadyScore(metrics)
	metrics.Clamp()

	return &core.ChunkScore{
		ChunkID:    chunk.ChunkID,
		DocumentID: chunk.DocumentID,
		Metrics:    metrics,
		TrustScore: TrustScore(metrics, s.weights),
		ScoredAt:   s.base.now().UTC(),
		Scorer:     s.Name(),
	}, nil
}

// densityConfidence nudges the structural confidence score by bytes per
// token. English prose runs near 4; much lower means fragmented or unusual
// text the vocabulary struggles to cover.
func (s *TokenizerScorer) densityConfidence(text string, tokens int, structural float64) float64 {
	if tokens == 0 {
		return 0
	}
	density := float64(len(text)) / float64(tokens)
	switch {
	case density >= 3.5:
		return structural + 10
	case density >= 2.5:
		return structural
	default:
		return structural - 20
	}
}
