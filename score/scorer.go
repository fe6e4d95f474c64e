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

	"github.com/poiesic/chunkwise/core"
)

// ChunkScorer computes the full metric set for one chunk. Implementations
// emit every canonical metric, each clamped to [0,100], plus the aggregate
// trust score.
type ChunkScorer interface {
	// Name identifies the scorer implementation in stored scores.
	Name() string

	// Score computes the metrics for one chunk.
	Score(ctx context.Context, chunk *core.ChunkRecord) (*core.ChunkScore, error)
}

// Weights maps metric names to their contribution weight in the aggregate
// trust score. Metrics absent from the table carry weight 1.
type Weights map[string]float64

// DefaultWeights returns the standard weighting: every metric contributes
// equally.
func DefaultWeights() Weights {
	w := make(Weights, len(core.MetricNames()))
	for _, name := range core.MetricNames() {
		w[name] = 1
	}
	return w
}

// TrustScore aggregates the base metrics into a single 0-100 score:
// the weighted mean of the metric values, rounded to two decimal places.
func TrustScore(metrics core.MetricSet, weights Weights) float64 {
	var weighted, total float64
	for _, name := range core.MetricNames() {
		w, ok := weights[name]
		if !ok {
			w = 1
		}
		if w <= 0 {
			continue
		}
		weighted += w * metrics[name] / 100
		total += w
	}
	if total == 0 {
		return 0
	}
	return round2(100 * weighted / total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var (
	_ ChunkScorer = (*HeuristicScorer)(nil)
	_ ChunkScorer = (*TokenizerScorer)(nil)
	_ ChunkScorer = (*Fallback)(nil)
)
