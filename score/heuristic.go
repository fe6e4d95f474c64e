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
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/chunkwise/core"
	"github.com/poiesic/chunkwise/prep"
)

// HeuristicScorerName identifies heuristic scores in storage.
const HeuristicScorerName = "heuristic"

// defaultTargetTokens centers the token-count curve when no chunk-size
// configuration is supplied.
const defaultTargetTokens = 250

// HeuristicScorer computes the full metric set from text statistics alone.
// It needs no network access or model files, which makes it the terminal
// fallback: it cannot fail.
type HeuristicScorer struct {
	targetTokens int
	weights      Weights
	estimate     prep.Estimator
	now          func() time.Time
}

// HeuristicOption configures a HeuristicScorer.
type HeuristicOption func(*HeuristicScorer)

// WithTargetTokens centers the token-count scoring curve on the configured
// chunk size. Default is 250.
func WithTargetTokens(n int) HeuristicOption {
	return func(s *HeuristicScorer) {
		if n > 0 {
			s.targetTokens = n
		}
	}
}

// WithWeights replaces the trust-score weighting table.
func WithWeights(w Weights) HeuristicOption {
	return func(s *HeuristicScorer) {
		if w != nil {
			s.weights = w
		}
	}
}

// WithHeuristicEstimator replaces the token estimator used for Token_Count.
func WithHeuristicEstimator(e prep.Estimator) HeuristicOption {
	return func(s *HeuristicScorer) {
		if e != nil {
			s.estimate = e
		}
	}
}

// NewHeuristicScorer creates a statistics-based scorer.
func NewHeuristicScorer(opts ...HeuristicOption) *HeuristicScorer {
	s := &HeuristicScorer{
		targetTokens: defaultTargetTokens,
		weights:      DefaultWeights(),
		estimate:     prep.EstimateTokens,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements ChunkScorer.
func (s *HeuristicScorer) Name() string { return HeuristicScorerName }

// Score implements ChunkScorer. It never fails for non-nil input.
func (s *HeuristicScorer) Score(_ context.Context, chunk *core.ChunkRecord) (*core.ChunkScore, error) {
	if chunk == nil {
		return nil, ErrNilChunk
	}

	metrics := s.Metrics(chunk)
	return &core.ChunkScore{
		ChunkID:    chunk.ChunkID,
		DocumentID: chunk.DocumentID,
		Metrics:    metrics,
		TrustScore: TrustScore(metrics, s.weights),
		ScoredAt:   s.now().UTC(),
		Scorer:     s.Name(),
	}, nil
}

// Metrics computes the base metric set without the aggregate. Exposed so the
// tokenizer scorer can reuse the statistics and override only what it
// measures better.
func (s *HeuristicScorer) Metrics(chunk *core.ChunkRecord) core.MetricSet {
	text := chunk.Text
	sentences := prep.SplitSentences(text)
	words := strings.Fields(text)

	metrics := core.MetricSet{
		core.MetricCompleteness:           completenessScore(text, sentences),
		core.MetricAccuracy:               printableRatio(text) * 100,
		core.MetricSecure:                 secureScore(text),
		core.MetricQuality:                sentenceLengthScore(sentences, words),
		core.MetricTimeliness:             s.timelinessScore(chunk.Timestamp),
		core.MetricTokenCount:             TokenCountScore(s.estimate(text), s.targetTokens),
		core.MetricGPTConfidence:          confidenceScore(sentences, words),
		core.MetricContextQuality:         contextScore(chunk),
		core.MetricMetadataPresence:       metadataScore(chunk),
		core.MetricAudienceIntentionality: audienceScore(chunk.Audience),
		core.MetricDiversity:              typeTokenRatio(words) * 100,
		core.MetricAudienceAccessibility:  accessibilityScore(sentences, words),
	}
	metrics[core.MetricKnowledgeBaseReady] = kbReadyScore(metrics)
	metrics.Clamp()
	return metrics
}

// TokenCountScore maps a token count onto a bell curve centered on the target
// chunk size: exp(-((n/target - 1)^2) / 0.5), scaled to 100. A chunk at the
// target scores 100; half or double the target scores about 61.
func TokenCountScore(tokens, target int) float64 {
	if target < 1 {
		target = defaultTargetTokens
	}
	ratio := float64(tokens)/float64(target) - 1
	return 100 * math.Exp(-(ratio*ratio)/0.5)
}

// completenessScore rewards chunks that read as complete prose: starting at a
// sentence head and ending on terminal punctuation.
func completenessScore(text string, sentences []string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	score := 40.0
	r, _ := utf8.DecodeRuneInString(text)
	if unicode.IsUpper(r) || unicode.IsDigit(r) {
		score += 25
	}
	if strings.ContainsAny(string(text[len(text)-1]), ".!?") {
		score += 25
	}
	if len(sentences) > 1 {
		score += 10
	}
	return score
}

// printableRatio is the fraction of printable, non-replacement runes. OCR
// artifacts and mojibake drag it down.
func printableRatio(text string) float64 {
	if text == "" {
		return 0
	}
	total, good := 0, 0
	for _, r := range text {
		total++
		if r == utf8.RuneError || (!unicode.IsPrint(r) && !unicode.IsSpace(r)) {
			continue
		}
		good++
	}
	return float64(good) / float64(total)
}

// secureScore starts at 100 and deducts for PII: 30 per unredacted hit and 10
// per redaction marker already applied upstream.
func secureScore(text string) float64 {
	score := 100.0
	score -= 30 * float64(prep.PIIHits(text))
	redacted := strings.Count(text, prep.RedactedEmail) +
		strings.Count(text, prep.RedactedPhone) +
		strings.Count(text, prep.RedactedSSN)
	score -= 10 * float64(redacted)
	return score
}

// sentenceLengthScore rewards mean sentence lengths in the readable 8-30 word
// band and decays linearly outside it.
func sentenceLengthScore(sentences, words []string) float64 {
	if len(sentences) == 0 || len(words) == 0 {
		return 0
	}
	mean := float64(len(words)) / float64(len(sentences))
	switch {
	case mean >= 8 && mean <= 30:
		return 100
	case mean < 8:
		return 100 * mean / 8
	default:
		over := mean - 30
		return math.Max(0, 100-over*3)
	}
}

func (s *HeuristicScorer) timelinessScore(ts time.Time) float64 {
	if ts.IsZero() {
		return 50
	}
	age := s.now().Sub(ts)
	if age < 0 {
		age = 0
	}
	years := age.Hours() / (24 * 365)
	return math.Max(0, 100-20*years)
}

// confidenceScore is a structural proxy for generation confidence: well-formed
// multi-sentence prose with moderate word lengths scores high.
func confidenceScore(sentences, words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	score := 50.0
	if len(sentences) >= 2 {
		score += 20
	}
	if mean := meanWordLen(words); mean >= 3 && mean <= 8 {
		score += 20
	}
	if len(words) >= 20 {
		score += 10
	}
	return score
}

// contextScore measures how much surrounding structure the chunk carries:
// a real section assignment and neighbors in the same section.
func contextScore(chunk *core.ChunkRecord) float64 {
	score := 30.0
	if chunk.Section != "" && chunk.Section != "introduction" {
		score += 35
	}
	if chunk.ChunkOf > 1 {
		score += 20
	}
	if chunk.Page > 0 {
		score += 15
	}
	return score
}

// metadataScore is the populated fraction of the metadata fields downstream
// retrieval filters on.
func metadataScore(chunk *core.ChunkRecord) float64 {
	fields := []bool{
		chunk.Filename != "",
		chunk.DocumentID != "",
		chunk.Page > 0,
		chunk.Section != "",
		chunk.Audience != "",
		chunk.ProductID != "",
		!chunk.Timestamp.IsZero(),
	}
	populated := 0
	for _, present := range fields {
		if present {
			populated++
		}
	}
	return 100 * float64(populated) / float64(len(fields))
}

func audienceScore(audience string) float64 {
	if audience == "" {
		return 40
	}
	return 100
}

// typeTokenRatio is distinct words over total words, case-folded.
func typeTokenRatio(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[strings.ToLower(strings.Trim(w, ".,;:!?\"'()"))] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}

// accessibilityScore approximates readability from word and sentence lengths,
// in the spirit of Flesch reading ease.
func accessibilityScore(sentences, words []string) float64 {
	if len(sentences) == 0 || len(words) == 0 {
		return 0
	}
	wordsPerSentence := float64(len(words)) / float64(len(sentences))
	score := 100.0
	if wordsPerSentence > 20 {
		score -= (wordsPerSentence - 20) * 2
	}
	if mean := meanWordLen(words); mean > 6 {
		score -= (mean - 6) * 10
	}
	return math.Max(0, score)
}

// kbReadyScore is a composite of the gate-critical metrics: a chunk is
// knowledge-base ready when it is complete, safe, and well described.
func kbReadyScore(m core.MetricSet) float64 {
	return (m[core.MetricCompleteness] +
		m[core.MetricSecure] +
		m[core.MetricMetadataPresence] +
		m[core.MetricQuality]) / 4
}

func meanWordLen(words []string) float64 {
	total := 0
	for _, w := range words {
		total += utf8.RuneCountInString(w)
	}
	return float64(total) / float64(len(words))
}
