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


package config

import "github.com/poiesic/chunkwise/playbook"

// Source labels the configuration level that supplied a resolved field.
// The set is closed; every resolved field carries exactly one label.
type Source string

const (
	SourceRunConf             Source = "run_conf"
	SourceForceProduct        Source = "force_product_chunking_config"
	SourceProductManual       Source = "product_manual_settings"
	SourcePlaybookDefaults    Source = "playbook_defaults"
	SourceContentTypeDefaults Source = "content_type_defaults"
	SourceGlobalDefault       Source = "global_default"
	SourceDetectedPlaybook    Source = "detected_playbook"
	SourceProduct             Source = "product"
)

// Resolved field names used as ResolutionTrace keys.
const (
	FieldChunkSize    = "chunk_size"
	FieldChunkOverlap = "chunk_overlap"
	FieldMinChunkSize = "min_chunk_size"
	FieldMaxChunkSize = "max_chunk_size"
	FieldStrategy     = "chunking_strategy"
	FieldPlaybookID   = "playbook_id"
)

// ResolutionTrace records, per resolved field, the precedence level that
// actually supplied its final value.
type ResolutionTrace map[string]Source

// ChunkingValues is a sparse set of chunking parameters. Nil fields are
// transparent: they never override a concrete value from a lower-precedence
// level.
type ChunkingValues struct {
	ChunkSize    *int
	ChunkOverlap *int
	MinChunkSize *int
	MaxChunkSize *int
	Strategy     *string
}

// RunConf carries run-level overrides. Per-field overrides and the
// ChunkingConfig sub-object are both level-1 sources; a per-field value wins
// over the sub-object within the level.
type RunConf struct {
	ChunkingValues

	// ChunkingConfig is an optional sub-object of chunking overrides.
	ChunkingConfig *ChunkingValues

	// ForceProductChunkingConfig takes the product chunking config verbatim
	// at level 2 when set.
	ForceProductChunkingConfig bool

	// PlaybookID overrides playbook selection for the run.
	PlaybookID string
}

// ProductSettings carries product-level configuration.
type ProductSettings struct {
	// ChunkingConfig is the product's auto-derived chunking config, applied
	// only when the run forces it.
	ChunkingConfig *ChunkingValues

	// ManualSettings are operator-entered chunking values.
	ManualSettings *ChunkingValues

	// PlaybookID is the product's configured playbook.
	PlaybookID string

	// ContentType and Confidence describe the product's detected content
	// class; a specific content type refines playbook defaults at level 4.
	ContentType string
	Confidence  float64

	// Mode is "manual" or "auto"; informational, copied to the resolved view.
	Mode string

	// QualityGates are the product's policy thresholds, keyed by gate name.
	QualityGates map[string]float64
}

// Chunking is the fully resolved chunking configuration.
type Chunking struct {
	Mode         string
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int
	MaxChunkSize int
	Strategy     string
	ContentType  string
	Confidence   float64
}

// EffectiveConfig is the resolved view over run overrides, product settings,
// playbook defaults, and global defaults. Built fresh per resolution call.
type EffectiveConfig struct {
	Chunking   Chunking
	PlaybookID string
	Playbook   *playbook.Config
	Trace      ResolutionTrace
}

// IntPtr returns a pointer to v. Convenience for building sparse configs.
func IntPtr(v int) *int { return &v }

// StrPtr returns a pointer to s. Convenience for building sparse configs.
func StrPtr(s string) *string { return &s }
