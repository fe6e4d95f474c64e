package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/chunkwise/core"
)

func TestEvaluate_SingleViolation(t *testing.T) {
	fp := core.Fingerprint{
		core.MetricSecure:     100,
		core.MetricTrustScore: 40,
	}
	thresholds := map[string]float64{
		"min_secure":      90,
		"min_trust_score": 50,
	}

	verdict := Evaluate(fp, thresholds)

	assert.False(t, verdict.Passed)
	require.Len(t, verdict.Violations, 1)
	assert.Equal(t, core.MetricTrustScore, verdict.Violations[0].Metric)
	assert.Equal(t, 50.0, verdict.Violations[0].Threshold)
	assert.Equal(t, 40.0, verdict.Violations[0].Actual)
}

func TestEvaluate_AllGatesPass(t *testing.T) {
	fp := core.Fingerprint{
		core.MetricSecure:           95,
		core.MetricTrustScore:       72,
		core.MetricMetadataPresence: 100,
	}
	verdict := Evaluate(fp, map[string]float64{
		"min_secure":            90,
		"min_trust_score":       50,
		"min_metadata_presence": 80,
	})

	assert.True(t, verdict.Passed)
	assert.Empty(t, verdict.Violations)
}

func TestEvaluate_NoThresholdsPassesTrivially(t *testing.T) {
	verdict := Evaluate(core.Fingerprint{core.MetricSecure: 10}, nil)
	assert.True(t, verdict.Passed)
}

func TestEvaluate_ExactThresholdPasses(t *testing.T) {
	fp := core.Fingerprint{core.MetricSecure: 90}
	verdict := Evaluate(fp, map[string]float64{"min_secure": 90})
	assert.True(t, verdict.Passed)
}

func TestEvaluate_UnknownThresholdIgnored(t *testing.T) {
	fp := core.Fingerprint{core.MetricSecure: 100}
	verdict := Evaluate(fp, map[string]float64{"min_unicorn_factor": 99})
	assert.True(t, verdict.Passed)
}

func TestEvaluate_FallbackMetricMatch(t *testing.T) {
	// min_diversity has no explicit mapping; it resolves by name.
	fp := core.Fingerprint{core.MetricDiversity: 30}
	verdict := Evaluate(fp, map[string]float64{"min_diversity": 60})

	assert.False(t, verdict.Passed)
	require.Len(t, verdict.Violations, 1)
	assert.Equal(t, core.MetricDiversity, verdict.Violations[0].Metric)
}

func TestEvaluate_ViolationsSortedByThresholdName(t *testing.T) {
	fp := core.Fingerprint{
		core.MetricSecure:     10,
		core.MetricTrustScore: 10,
		core.MetricAccuracy:   10,
	}
	verdict := Evaluate(fp, map[string]float64{
		"min_trust_score": 50,
		"min_accuracy":    50,
		"min_secure":      50,
	})

	require.Len(t, verdict.Violations, 3)
	assert.Equal(t, core.MetricAccuracy, verdict.Violations[0].Metric)
	assert.Equal(t, core.MetricSecure, verdict.Violations[1].Metric)
	assert.Equal(t, core.MetricTrustScore, verdict.Violations[2].Metric)
}

func TestPolicyStage_Execute(t *testing.T) {
	run := NewRunContext("pump-9000", "v1")
	run.SetScores([]*core.ChunkScore{{ChunkID: "c0"}})
	run.SetFingerprint(core.Fingerprint{
		core.MetricSecure:     100,
		core.MetricTrustScore: 40,
	})

	stage := NewPolicyStage(map[string]float64{
		"min_secure":      90,
		"min_trust_score": 50,
	}, nil, nil)

	result := runStage(context.Background(), stage, run, testLogger())

	// A failed gate is a verdict, not a stage failure.
	assert.Equal(t, core.StageSucceeded, result.Status)
	require.NotNil(t, run.Policy())
	assert.False(t, run.Policy().Passed)
	assert.Equal(t, 0.0, result.Metrics["passed"])
	assert.Equal(t, 1.0, result.Metrics["violations"])
}

func TestPolicyStage_SkippedWithoutFingerprint(t *testing.T) {
	run := NewRunContext("pump-9000", "v1")
	stage := NewPolicyStage(map[string]float64{"min_secure": 90}, nil, nil)

	result := runStage(context.Background(), stage, run, testLogger())

	assert.Equal(t, core.StageSkipped, result.Status)
	assert.Nil(t, run.Policy())
}
