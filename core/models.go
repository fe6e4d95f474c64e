package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Key is a deterministic 64-bit identifier derived from content.
// Identical content always produces the same Key, which keeps storage
// writes idempotent across pipeline re-runs.
type Key uint64

// KeyFromContent generates a deterministic Key from text content using BLAKE2b hashing.
func KeyFromContent(text string) Key {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return Key(binary.LittleEndian.Uint64(sum))
}

// StageStatus is the terminal state of one pipeline stage invocation.
type StageStatus string

const (
	// StageSucceeded means the stage produced output, possibly with isolated unit failures.
	StageSucceeded StageStatus = "SUCCEEDED"
	// StageFailed means the stage produced no usable output.
	StageFailed StageStatus = "FAILED"
	// StageSkipped means the stage's required upstream artifacts were absent.
	StageSkipped StageStatus = "SKIPPED"
)

// Canonical trust metric names. Every scorer implementation emits exactly
// this set, each value normalized to the 0-100 range.
const (
	MetricCompleteness           = "Completeness"
	MetricAccuracy               = "Accuracy"
	MetricSecure                 = "Secure"
	MetricQuality                = "Quality"
	MetricTimeliness             = "Timeliness"
	MetricTokenCount             = "Token_Count"
	MetricGPTConfidence          = "GPT_Confidence"
	MetricContextQuality         = "Context_Quality"
	MetricMetadataPresence       = "Metadata_Presence"
	MetricAudienceIntentionality = "Audience_Intentionality"
	MetricDiversity              = "Diversity"
	MetricAudienceAccessibility  = "Audience_Accessibility"
	MetricKnowledgeBaseReady     = "KnowledgeBase_Ready"

	// MetricTrustScore is the weighted aggregate over the 13 base metrics.
	MetricTrustScore = "AI_Trust_Score"
)

// MetricNames lists the 13 base metrics in canonical order.
// The aggregate trust score is excluded.
func MetricNames() []string {
	return []string{
		MetricCompleteness,
		MetricAccuracy,
		MetricSecure,
		MetricQuality,
		MetricTimeliness,
		MetricTokenCount,
		MetricGPTConfidence,
		MetricContextQuality,
		MetricMetadataPresence,
		MetricAudienceIntentionality,
		MetricDiversity,
		MetricAudienceAccessibility,
		MetricKnowledgeBaseReady,
	}
}

// MetricSet maps metric names to normalized 0-100 values.
type MetricSet map[string]float64

// Clone returns an independent copy of the metric set.
func (m MetricSet) Clone() MetricSet {
	out := make(MetricSet, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clamp constrains every value to the [0,100] range in place.
func (m MetricSet) Clamp() {
	for k, v := range m {
		if v < 0 {
			m[k] = 0
		} else if v > 100 {
			m[k] = 100
		}
	}
}

// ChunkRecord is one retrieval-ready text chunk produced by the preprocessing
// stage. Records are created once and never mutated downstream.
type ChunkRecord struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Page       int
	SectionRaw string
	Section    string
	FieldName  string
	Text       string
	TokenEst   int
	ChunkIndex int
	ChunkOf    int
	Audience   string
	Timestamp  time.Time
	ProductID  string
	IndexScope string
	DocScope   string
	FieldScope string
	ContentKey Key // BLAKE2b hash of Text, for idempotent storage keys
}

// ChunkIDFor derives the deterministic chunk identifier for a document chunk.
// The ID is unique within one document version.
func ChunkIDFor(stem string, page int, section string, index int) string {
	return fmt.Sprintf("%s_p%d_s%s_c%d", stem, page, section, index)
}

// ChunkScore holds the trust metrics computed for a single chunk.
// Immutable once scored.
type ChunkScore struct {
	ChunkID    string
	DocumentID string
	Metrics    MetricSet
	TrustScore float64
	ScoredAt   time.Time
	Scorer     string // name of the scorer implementation that produced the metrics
}

// Fingerprint is the run-level readiness fingerprint: the arithmetic mean of
// every numeric metric across all chunk scores in a run.
type Fingerprint map[string]float64

// Violation describes one policy threshold the fingerprint failed to meet.
type Violation struct {
	Metric    string
	Threshold float64
	Actual    float64
}

// PolicyResult is the verdict of evaluating a fingerprint against configured
// thresholds. A failed policy is a business outcome, not an error.
type PolicyResult struct {
	Passed     bool
	Violations []Violation
	Thresholds map[string]float64
}

// StageResult is the uniform outcome contract emitted by every pipeline stage.
type StageResult struct {
	Stage       string
	Status      StageStatus
	Metrics     map[string]float64
	Artifacts   []string
	FailedFiles []string // populated by stages that isolate per-unit failures
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Succeeded reports whether the stage completed with output.
func (r *StageResult) Succeeded() bool {
	return r.Status == StageSucceeded
}
