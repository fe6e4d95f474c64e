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


// Package chunkwise turns raw product documents into scored, policy-gated
// chunk records. The Workspace ties the pieces together: a document source,
// an optional playbook router, the configuration resolver, a chunk scorer,
// and an optional persistent record store.
package chunkwise

import (
	"context"
	"log/slog"

	"github.com/poiesic/chunkwise/config"
	"github.com/poiesic/chunkwise/core"
	"github.com/poiesic/chunkwise/pipeline"
	"github.com/poiesic/chunkwise/playbook"
	"github.com/poiesic/chunkwise/score"
	"github.com/poiesic/chunkwise/storage"
	"github.com/poiesic/chunkwise/storage/badger"
)

type Workspace struct {
	source     storage.DocumentSource
	store      storage.RecordStore
	router     *playbook.Router
	resolver   *config.Resolver
	scorer     score.ChunkScorer
	thresholds map[string]float64
	run        *config.RunConf
	product    *config.ProductSettings
	logger     *slog.Logger
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*workspaceOptions)

type workspaceOptions struct {
	dbPath      string
	inMemory    bool
	playbookDir string
	scorer      score.ChunkScorer
	thresholds  map[string]float64
	run         *config.RunConf
	product     *config.ProductSettings
	logger      *slog.Logger
}

// WithDatabase persists chunk records, scores, and artifacts to a BadgerDB
// database at path. Without it the pipeline runs entirely in memory.
func WithDatabase(path string) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.dbPath = path
	}
}

// WithInMemoryDatabase persists to a non-durable in-memory store. Useful for
// tests and dry runs.
func WithInMemoryDatabase() WorkspaceOption {
	return func(o *workspaceOptions) {
		o.inMemory = true
	}
}

// WithPlaybookDir enables playbook routing over a directory of YAML files.
func WithPlaybookDir(dir string) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.playbookDir = dir
	}
}

// WithScorer replaces the default heuristic scorer.
func WithScorer(scorer score.ChunkScorer) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.scorer = scorer
	}
}

// WithQualityGates sets the policy thresholds applied after fingerprinting.
func WithQualityGates(thresholds map[string]float64) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.thresholds = thresholds
	}
}

// WithRunOverrides sets run-level configuration overrides.
func WithRunOverrides(run *config.RunConf) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.run = run
	}
}

// WithProduct sets the product-level configuration. The product's quality
// gates are used unless WithQualityGates overrides them.
func WithProduct(product *config.ProductSettings) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.product = product
	}
}

// WithWorkspaceLogger sets a custom logger. Default is slog.Default().
func WithWorkspaceLogger(logger *slog.Logger) WorkspaceOption {
	return func(o *workspaceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewWorkspace creates a Workspace over a directory of documents.
func NewWorkspace(docsDir string, opts ...WorkspaceOption) (*Workspace, error) {
	options := &workspaceOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	source, err := storage.NewDirSource(docsDir)
	if err != nil {
		return nil, err
	}

	var router *playbook.Router
	if options.playbookDir != "" {
		router, err = playbook.NewRouter(options.playbookDir,
			playbook.WithLogger(options.logger))
		if err != nil {
			return nil, err
		}
	}

	var playbooks config.PlaybookSource
	if router != nil {
		playbooks = router
	}
	resolver := config.NewResolver(playbooks, config.WithLogger(options.logger))

	var store storage.RecordStore
	if options.dbPath != "" || options.inMemory {
		store, err = badger.Open(options.dbPath, options.inMemory)
		if err != nil {
			return nil, err
		}
	}

	scorer := options.scorer
	if scorer == nil {
		scorer = score.NewHeuristicScorer()
	}

	thresholds := options.thresholds
	if thresholds == nil && options.product != nil {
		thresholds = options.product.QualityGates
	}

	return &Workspace{
		source:     source,
		store:      store,
		router:     router,
		resolver:   resolver,
		scorer:     scorer,
		thresholds: thresholds,
		run:        options.run,
		product:    options.product,
		logger:     options.logger,
	}, nil
}

func (w *Workspace) Close() error {
	if w.store == nil {
		return nil
	}
	if err := w.store.Close(); err != nil {
		w.logger.Error("error closing record store", "err", err)
		return err
	}
	return nil
}

func (w *Workspace) Store() storage.RecordStore {
	return w.store
}

func (w *Workspace) Router() *playbook.Router {
	return w.router
}

func (w *Workspace) Resolver() *config.Resolver {
	return w.resolver
}

// NewRunner assembles the standard four-stage pipeline: preprocess, score,
// fingerprint, policy.
func (w *Workspace) NewRunner() (*pipeline.Runner, error) {
	preprocessOpts := []pipeline.PreprocessOption{
		pipeline.WithPreprocessLogger(w.logger),
	}
	if w.router != nil {
		preprocessOpts = append(preprocessOpts, pipeline.WithPreprocessRouter(w.router))
	}
	if w.store != nil {
		preprocessOpts = append(preprocessOpts, pipeline.WithPreprocessStore(w.store))
	}
	if w.run != nil {
		preprocessOpts = append(preprocessOpts, pipeline.WithRunConf(w.run))
	}
	if w.product != nil {
		preprocessOpts = append(preprocessOpts, pipeline.WithProductSettings(w.product))
	}

	preprocess, err := pipeline.NewPreprocessStage(w.source, w.resolver, preprocessOpts...)
	if err != nil {
		return nil, err
	}

	scoreOpts := []pipeline.ScoreOption{
		pipeline.WithScoreLogger(w.logger),
	}
	if w.store != nil {
		scoreOpts = append(scoreOpts, pipeline.WithScoreStore(w.store))
	}

	scoring, err := pipeline.NewScoreStage(w.scorer, scoreOpts...)
	if err != nil {
		return nil, err
	}

	return pipeline.NewRunner(w.logger,
		preprocess,
		scoring,
		pipeline.NewFingerprintStage(w.store, w.logger),
		pipeline.NewPolicyStage(w.thresholds, w.store, w.logger),
	), nil
}

// Ingest runs the full pipeline for one product version and returns the run
// context alongside the per-stage results.
func (w *Workspace) Ingest(ctx context.Context, productID, version string) (*pipeline.RunContext, []*core.StageResult, error) {
	runner, err := w.NewRunner()
	if err != nil {
		return nil, nil, err
	}

	run := pipeline.NewRunContext(productID, version)
	results := runner.Run(ctx, run)
	return run, results, nil
}
