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
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/chunkwise/config"
	"github.com/poiesic/chunkwise/core"
	"github.com/poiesic/chunkwise/playbook"
	"github.com/poiesic/chunkwise/prep"
	"github.com/poiesic/chunkwise/storage"
)

// routeSampleLen is how much of a document the router inspects for content
// signals.
const routeSampleLen = 2048

// PreprocessStage turns raw documents into chunk records: route to a
// playbook, resolve the effective configuration, normalize, split into pages
// and sections, and chunk under the token budget. Files are processed
// concurrently and fail independently; the stage fails only when no file
// yields chunks.
type PreprocessStage struct {
	source   storage.DocumentSource
	store    storage.RecordStore
	router   *playbook.Router
	resolver *config.Resolver
	run      *config.RunConf
	product  *config.ProductSettings

	poolSize      int
	retryAttempts int
	retryDelay    time.Duration
	estimate      prep.Estimator
	logger        *slog.Logger
}

// PreprocessOption configures a PreprocessStage.
type PreprocessOption func(*PreprocessStage) error

// WithPreprocessStore persists chunk records as they are produced. Without a
// store the chunks live only in the run context.
func WithPreprocessStore(store storage.RecordStore) PreprocessOption {
	return func(s *PreprocessStage) error {
		s.store = store
		return nil
	}
}

// WithPreprocessRouter enables content-based playbook detection.
func WithPreprocessRouter(router *playbook.Router) PreprocessOption {
	return func(s *PreprocessStage) error {
		s.router = router
		return nil
	}
}

// WithRunConf sets the run-level configuration overrides.
func WithRunConf(run *config.RunConf) PreprocessOption {
	return func(s *PreprocessStage) error {
		s.run = run
		return nil
	}
}

// WithProductSettings sets the product-level configuration.
func WithProductSettings(product *config.ProductSettings) PreprocessOption {
	return func(s *PreprocessStage) error {
		s.product = product
		return nil
	}
}

// WithPreprocessPoolSize sets the file worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPreprocessPoolSize(size int) PreprocessOption {
	return func(s *PreprocessStage) error {
		if size >= 1 {
			s.poolSize = size
		}
		return nil
	}
}

// WithPreprocessLogger sets a custom logger.
// Default is slog.Default().
func WithPreprocessLogger(logger *slog.Logger) PreprocessOption {
	return func(s *PreprocessStage) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// NewPreprocessStage creates the preprocessing stage.
func NewPreprocessStage(source storage.DocumentSource, resolver *config.Resolver, opts ...PreprocessOption) (*PreprocessStage, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if resolver == nil {
		return nil, ErrResolverRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	s := &PreprocessStage{
		source:        source,
		resolver:      resolver,
		poolSize:      poolSize,
		retryAttempts: 3,
		retryDelay:    100 * time.Millisecond,
		estimate:      prep.EstimateTokens,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name implements Stage.
func (s *PreprocessStage) Name() string { return StagePreprocess }

// Requires implements Stage. Preprocessing is the first stage and needs
// nothing.
func (s *PreprocessStage) Requires() []string { return nil }

// Execute implements Stage.
func (s *PreprocessStage) Execute(ctx context.Context, run *RunContext, result *core.StageResult) {
	files, err := s.source.List(ctx)
	if err != nil {
		result.Status = core.StageFailed
		result.Error = err.Error()
		return
	}
	if len(files) == 0 {
		result.Status = core.StageFailed
		result.Error = ErrNoDocuments.Error()
		return
	}

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		result.Status = core.StageFailed
		result.Error = err.Error()
		return
	}
	defer pool.Release()

	var (
		mu       sync.Mutex
		chunks   []*core.ChunkRecord
		failed   []string
		wg       sync.WaitGroup
		produced = time.Now().UTC()
	)

	for _, filename := range files {
		filename := filename
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			fileChunks, err := s.processFile(ctx, run, filename, produced)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("failed to process document", "file", filename, "err", err)
				failed = append(failed, filename)
				return
			}
			chunks = append(chunks, fileChunks...)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			failed = append(failed, filename)
			mu.Unlock()
		}
	}
	wg.Wait()

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkID < chunks[j].ChunkID })
	sort.Strings(failed)

	result.Metrics = map[string]float64{
		"files_total":  float64(len(files)),
		"files_failed": float64(len(failed)),
		"chunks_total": float64(len(chunks)),
	}
	result.FailedFiles = failed

	if len(chunks) == 0 {
		result.Status = core.StageFailed
		result.Error = "no documents produced chunks"
		return
	}

	run.SetChunks(chunks)
	result.Status = core.StageSucceeded
	result.Artifacts = []string{ArtifactChunks}
}

// processFile runs the full per-document path: route, resolve, normalize,
// split, chunk.
func (s *PreprocessStage) processFile(ctx context.Context, run *RunContext, filename string, produced time.Time) ([]*core.ChunkRecord, error) {
	text, err := s.source.GetRawText(ctx, filename)
	if err != nil {
		return nil, err
	}

	detected := ""
	if s.router != nil {
		sample := text
		if len(sample) > routeSampleLen {
			sample = sample[:routeSampleLen]
		}
		var reason string
		detected, reason = s.router.Route(sample, filename)
		s.logger.Debug("routed document", "file", filename, "playbook", detected, "reason", reason)
	}

	eff := s.resolver.Resolve(s.run, s.product, detected)
	pb := eff.Playbook

	var steps []playbook.NormalizerStep
	var audienceRules []playbook.AudienceRule
	overlapSentences := -1
	if pb != nil {
		steps = pb.PreNormalizers
		audienceRules = pb.AudienceRules
		if pb.Chunking.OverlapSentences != nil {
			overlapSentences = *pb.Chunking.OverlapSentences
		}
	}

	normalizer := prep.NewNormalizer(steps, prep.WithNormalizerLogger(s.logger))
	splitter := prep.NewSplitter(pb, prep.WithSplitterLogger(s.logger))

	chunkerOpts := []prep.ChunkerOption{
		prep.WithStrategy(eff.Chunking.Strategy),
		prep.WithOverlapChars(eff.Chunking.ChunkOverlap),
		prep.WithEstimator(s.estimate),
		prep.WithChunkerLogger(s.logger),
	}
	if overlapSentences >= 0 {
		chunkerOpts = append(chunkerOpts, prep.WithOverlapSentences(overlapSentences))
	}
	chunker := prep.NewChunker(eff.Chunking.ChunkSize, chunkerOpts...)

	normalized := normalizer.Apply(text)
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	var records []*core.ChunkRecord
	for _, page := range splitter.Pages(normalized) {
		for _, section := range splitter.Sections(page.Text) {
			pieces := s.fitToBounds(chunker.Split(section.Body), eff)
			audience := prep.ResolveAudience(audienceRules, section.Name, section.Body)
			for i, piece := range pieces {
				record := &core.ChunkRecord{
					ChunkID:    core.ChunkIDFor(stem, page.Number, section.Name, i),
					DocumentID: stem,
					Filename:   filename,
					Page:       page.Number,
					SectionRaw: section.TitleRaw,
					Section:    section.Name,
					Text:       piece,
					TokenEst:   s.estimate(piece),
					ChunkIndex: i,
					ChunkOf:    len(pieces),
					Audience:   audience,
					Timestamp:  produced,
					ProductID:  run.ProductID,
					ContentKey: core.KeyFromContent(piece),
				}
				if err := core.ValidateChunkRecord(record); err != nil {
					return nil, err
				}
				records = append(records, record)
			}
		}
	}

	if s.store != nil && len(records) > 0 {
		err := RetryWithBackoff(ctx, func() error {
			return s.store.PutChunks(ctx, run.ProductID, run.Version, records...)
		}, s.retryAttempts, s.retryDelay)
		if err != nil {
			return nil, err
		}
	}

	return records, nil
}

// fitToBounds applies the resolved min and max chunk sizes: undersized chunks
// are merged into their predecessor, oversized ones re-split under the hard
// cap.
func (s *PreprocessStage) fitToBounds(pieces []string, eff *config.EffectiveConfig) []string {
	minSize := eff.Chunking.MinChunkSize
	maxSize := eff.Chunking.MaxChunkSize

	if minSize > 0 && len(pieces) > 1 {
		merged := make([]string, 0, len(pieces))
		for _, piece := range pieces {
			if len(merged) > 0 && s.estimate(piece) < minSize {
				merged[len(merged)-1] += " " + piece
				continue
			}
			merged = append(merged, piece)
		}
		pieces = merged
	}

	if maxSize > 0 {
		capped := make([]string, 0, len(pieces))
		hardCap := prep.NewChunker(maxSize,
			prep.WithOverlapChars(0),
			prep.WithEstimator(s.estimate),
			prep.WithChunkerLogger(s.logger))
		for _, piece := range pieces {
			if s.estimate(piece) > maxSize {
				capped = append(capped, hardCap.Split(piece)...)
				continue
			}
			capped = append(capped, piece)
		}
		pieces = capped
	}

	return pieces
}
