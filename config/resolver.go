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

import (
	"log/slog"

	"github.com/poiesic/chunkwise/playbook"
)

// Global defaults, the lowest precedence level.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMinChunkSize = 100
	DefaultMaxChunkSize = 2000
	DefaultStrategy     = "fixed_size"
)

// PlaybookSource resolves a playbook id to its parsed configuration.
// *playbook.Router satisfies this interface.
type PlaybookSource interface {
	Resolve(id string) (string, *playbook.Config)
}

// Resolver merges run overrides, product settings, playbook defaults, and
// global defaults into one EffectiveConfig with per-field provenance.
type Resolver struct {
	playbooks PlaybookSource
	ctDefault map[string]ChunkingValues
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithContentTypeDefaults replaces the content-type refinement table.
func WithContentTypeDefaults(table map[string]ChunkingValues) ResolverOption {
	return func(r *Resolver) {
		if table != nil {
			r.ctDefault = table
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a Resolver. The playbook source may be nil, in which
// case the playbook-defaults level is transparent.
func NewResolver(playbooks PlaybookSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		playbooks: playbooks,
		ctDefault: contentTypeDefaults(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// contentTypeDefaults is the built-in refinement table applied at level 4
// when the product's detected content type is more specific than "general".
func contentTypeDefaults() map[string]ChunkingValues {
	return map[string]ChunkingValues{
		"ocr_scanned": {
			ChunkSize: IntPtr(800),
			Strategy:  StrPtr("fixed_size"),
		},
		"regulatory": {
			ChunkSize:    IntPtr(600),
			ChunkOverlap: IntPtr(150),
			Strategy:     StrPtr("sentence"),
		},
		"narrative": {
			Strategy: StrPtr("sentence"),
		},
	}
}

// Resolve is a pure resolution over its inputs: each chunking field passes
// independently through five precedence levels, highest first, and nil values
// at any level are transparent. detectedPlaybook may be empty.
func (r *Resolver) Resolve(run *RunConf, product *ProductSettings, detectedPlaybook string) *EffectiveConfig {
	if run == nil {
		run = &RunConf{}
	}
	if product == nil {
		product = &ProductSettings{}
	}

	trace := make(ResolutionTrace, 6)

	playbookID, playbookSrc := resolvePlaybookID(run, product, detectedPlaybook)
	trace[FieldPlaybookID] = playbookSrc

	var pb *playbook.Config
	if r.playbooks != nil {
		resolved, cfg := r.playbooks.Resolve(playbookID)
		if cfg != nil {
			playbookID = resolved
			pb = cfg
		}
	}

	levels := r.buildLevels(run, product, pb)

	cfg := &EffectiveConfig{
		Chunking: Chunking{
			Mode:        modeOf(product),
			ContentType: product.ContentType,
			Confidence:  product.Confidence,
		},
		PlaybookID: playbookID,
		Playbook:   pb,
		Trace:      trace,
	}

	cfg.Chunking.ChunkSize = resolveInt(levels, FieldChunkSize, DefaultChunkSize, trace,
		func(v ChunkingValues) *int { return v.ChunkSize })
	cfg.Chunking.ChunkOverlap = resolveInt(levels, FieldChunkOverlap, DefaultChunkOverlap, trace,
		func(v ChunkingValues) *int { return v.ChunkOverlap })
	cfg.Chunking.MinChunkSize = resolveInt(levels, FieldMinChunkSize, DefaultMinChunkSize, trace,
		func(v ChunkingValues) *int { return v.MinChunkSize })
	cfg.Chunking.MaxChunkSize = resolveInt(levels, FieldMaxChunkSize, DefaultMaxChunkSize, trace,
		func(v ChunkingValues) *int { return v.MaxChunkSize })
	cfg.Chunking.Strategy = resolveStr(levels, FieldStrategy, DefaultStrategy, trace,
		func(v ChunkingValues) *string { return v.Strategy })

	r.logger.Debug("configuration resolved",
		"playbook", cfg.PlaybookID,
		"chunk_size", cfg.Chunking.ChunkSize,
		"strategy", cfg.Chunking.Strategy)

	return cfg
}

// level pairs a sparse value set with its provenance label.
type level struct {
	values ChunkingValues
	source Source
}

// buildLevels assembles the precedence chain, highest first. Within level 1,
// a per-field run override wins over the run's chunking_config sub-object;
// both carry the run_conf label.
func (r *Resolver) buildLevels(run *RunConf, product *ProductSettings, pb *playbook.Config) []level {
	levels := make([]level, 0, 6)

	levels = append(levels, level{values: run.ChunkingValues, source: SourceRunConf})
	if run.ChunkingConfig != nil {
		levels = append(levels, level{values: *run.ChunkingConfig, source: SourceRunConf})
	}

	if run.ForceProductChunkingConfig && product.ChunkingConfig != nil {
		levels = append(levels, level{values: *product.ChunkingConfig, source: SourceForceProduct})
	}

	if product.ManualSettings != nil {
		levels = append(levels, level{values: *product.ManualSettings, source: SourceProductManual})
	}

	if ct := product.ContentType; isSpecificContentType(ct) {
		if refined, ok := r.ctDefault[ct]; ok {
			levels = append(levels, level{values: refined, source: SourceContentTypeDefaults})
		}
	}

	if pb != nil {
		levels = append(levels, level{values: playbookChunkingValues(pb), source: SourcePlaybookDefaults})
	}

	return levels
}

// playbookChunkingValues maps playbook chunking defaults onto resolver fields.
// max_tokens sizes the chunk and hard_overlap_chars supplies the overlap;
// min/max chunk sizes have no playbook-level equivalent.
func playbookChunkingValues(pb *playbook.Config) ChunkingValues {
	return ChunkingValues{
		ChunkSize:    pb.Chunking.MaxTokens,
		ChunkOverlap: pb.Chunking.HardOverlapChars,
		Strategy:     pb.Chunking.Strategy,
	}
}

func resolvePlaybookID(run *RunConf, product *ProductSettings, detected string) (string, Source) {
	if run.PlaybookID != "" {
		return run.PlaybookID, SourceRunConf
	}
	if detected != "" {
		return detected, SourceDetectedPlaybook
	}
	if product.PlaybookID != "" {
		return product.PlaybookID, SourceProduct
	}
	return playbook.DefaultID, SourceGlobalDefault
}

func resolveInt(levels []level, field string, fallback int, trace ResolutionTrace, get func(ChunkingValues) *int) int {
	for _, l := range levels {
		if v := get(l.values); v != nil {
			trace[field] = l.source
			return *v
		}
	}
	trace[field] = SourceGlobalDefault
	return fallback
}

func resolveStr(levels []level, field string, fallback string, trace ResolutionTrace, get func(ChunkingValues) *string) string {
	for _, l := range levels {
		if v := get(l.values); v != nil && *v != "" {
			trace[field] = l.source
			return *v
		}
	}
	trace[field] = SourceGlobalDefault
	return fallback
}

func modeOf(product *ProductSettings) string {
	if product.Mode != "" {
		return product.Mode
	}
	if product.ManualSettings != nil {
		return "manual"
	}
	return "auto"
}

// isSpecificContentType reports whether a detected content type should refine
// playbook defaults. Generic classifications stay transparent.
func isSpecificContentType(ct string) bool {
	switch ct {
	case "", "general", "unknown":
		return false
	}
	return true
}
