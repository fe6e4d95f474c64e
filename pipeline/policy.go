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

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/chunkwise/core"
	"github.com/poiesic/chunkwise/storage"
)

// thresholdMetrics maps quality-gate threshold names to the fingerprint
// metrics they constrain. Unknown "min_*" thresholds fall back to a
// case-insensitive metric name match, so playbooks can gate on any metric.
var thresholdMetrics = map[string]string{
	"min_trust_score":       core.MetricTrustScore,
	"min_secure":            core.MetricSecure,
	"min_metadata_presence": core.MetricMetadataPresence,
	"min_kb_ready":          core.MetricKnowledgeBaseReady,
	"min_completeness":      core.MetricCompleteness,
	"min_accuracy":          core.MetricAccuracy,
	"min_quality":           core.MetricQuality,
}

// metricForThreshold resolves a threshold name to the metric it gates.
// Returns "" for names it cannot map.
func metricForThreshold(name string, fp core.Fingerprint) string {
	if metric, ok := thresholdMetrics[name]; ok {
		return metric
	}
	bare := strings.TrimPrefix(strings.ToLower(name), "min_")
	for metric := range fp {
		if strings.EqualFold(strings.ReplaceAll(metric, "_", ""), strings.ReplaceAll(bare, "_", "")) {
			return metric
		}
	}
	return ""
}

// Evaluate checks a fingerprint against minimum thresholds. Every gated
// metric must meet its threshold; violations report the exact threshold and
// observed value. A failed policy is a verdict, not an error.
func Evaluate(fp core.Fingerprint, thresholds map[string]float64) *core.PolicyResult {
	result := &core.PolicyResult{
		Passed:     true,
		Thresholds: thresholds,
	}

	names := make([]string, 0, len(thresholds))
	for name := range thresholds {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		metric := metricForThreshold(name, fp)
		if metric == "" {
			continue
		}
		actual := fp[metric]
		if actual < thresholds[name] {
			result.Passed = false
			result.Violations = append(result.Violations, core.Violation{
				Metric:    metric,
				Threshold: thresholds[name],
				Actual:    actual,
			})
		}
	}
	return result
}

// PolicyStage evaluates the run fingerprint against the active quality
// gates. With no gates configured the run passes trivially.
type PolicyStage struct {
	thresholds map[string]float64
	store      storage.RecordStore
	logger     *slog.Logger
}

// NewPolicyStage creates the policy stage. The store is optional.
func NewPolicyStage(thresholds map[string]float64, store storage.RecordStore, logger *slog.Logger) *PolicyStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyStage{thresholds: thresholds, store: store, logger: logger}
}

// Name implements Stage.
func (s *PolicyStage) Name() string { return StagePolicy }

// Requires implements Stage.
func (s *PolicyStage) Requires() []string { return []string{ArtifactFingerprint} }

// Execute implements Stage.
func (s *PolicyStage) Execute(ctx context.Context, run *RunContext, result *core.StageResult) {
	verdict := Evaluate(run.Fingerprint(), s.thresholds)

	if !verdict.Passed {
		for _, v := range verdict.Violations {
			s.logger.Warn("policy violation",
				"metric", v.Metric, "threshold", v.Threshold, "actual", v.Actual)
		}
	}

	if s.store != nil {
		data, err := json.Marshal(verdict)
		if err == nil {
			err = RetryWithBackoff(ctx, func() error {
				return s.store.PutArtifact(ctx, run.ProductID, run.Version, ArtifactPolicy, data)
			}, 3, 100*time.Millisecond)
		}
		if err != nil {
			result.Status = core.StageFailed
			result.Error = err.Error()
			return
		}
	}

	run.SetPolicy(verdict)
	result.Status = core.StageSucceeded
	result.Artifacts = []string{ArtifactPolicy}
	passed := 0.0
	if verdict.Passed {
		passed = 1.0
	}
	result.Metrics = map[string]float64{
		"passed":     passed,
		"violations": float64(len(verdict.Violations)),
	}
}
