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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/chunkwise/config"
	"github.com/poiesic/chunkwise/core"
	"github.com/poiesic/chunkwise/pipeline"
	"github.com/poiesic/chunkwise/playbook"
	"github.com/poiesic/chunkwise/score"
	"github.com/poiesic/chunkwise/storage"
	"github.com/poiesic/chunkwise/storage/badger"
)

func main() {
	app := &cli.App{
		Name:  "chunkwise",
		Usage: "Document ingestion pipeline with per-chunk trust scoring",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the full pipeline over a directory of documents",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "docs",
						Usage:    "Directory of input documents",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "product",
						Usage:    "Product identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "version",
						Usage: "Ingestion version",
						Value: "v1",
					},
					&cli.StringFlag{
						Name:  "playbooks",
						Usage: "Directory of playbook YAML files",
					},
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB database directory (omit to skip persistence)",
					},
					&cli.StringFlag{
						Name:  "playbook",
						Usage: "Force a playbook id for the whole run",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Override target chunk size in tokens",
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Override chunk overlap in characters",
					},
					&cli.IntFlag{
						Name:  "min-chunk-size",
						Usage: "Override minimum chunk size in tokens",
					},
					&cli.IntFlag{
						Name:  "max-chunk-size",
						Usage: "Override maximum chunk size in tokens",
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Override chunking strategy (fixed_size, sentence, recursive)",
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Worker pool size for file and chunk processing",
					},
					&cli.IntFlag{
						Name:  "target-tokens",
						Usage: "Ideal chunk length for the token count metric",
						Value: 250,
					},
					&cli.StringSliceFlag{
						Name:  "gate",
						Usage: "Policy threshold as name=value (e.g. min_trust_score=70); repeatable",
					},
				},
			},
			{
				Name:  "playbooks",
				Usage: "Inspect the playbook directory",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List playbook ids found in the directory",
						Action: playbooksListCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "playbooks",
								Usage:    "Directory of playbook YAML files",
								Required: true,
							},
						},
					},
					{
						Name:      "route",
						Usage:     "Show which playbook a document would route to",
						ArgsUsage: "<file>",
						Action:    playbooksRouteCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "playbooks",
								Usage:    "Directory of playbook YAML files",
								Required: true,
							},
						},
					},
					{
						Name:   "resolve",
						Usage:  "Show the effective chunking configuration and its provenance",
						Action: playbooksResolveCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "playbooks",
								Usage:    "Directory of playbook YAML files",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "playbook",
								Usage: "Playbook id to resolve against",
							},
							&cli.IntFlag{
								Name:  "chunk-size",
								Usage: "Run-level chunk size override",
							},
							&cli.IntFlag{
								Name:  "chunk-overlap",
								Usage: "Run-level chunk overlap override",
							},
							&cli.StringFlag{
								Name:  "strategy",
								Usage: "Run-level strategy override",
							},
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runCommand(c *cli.Context) error {
	ctx := context.Background()

	source, err := storage.NewDirSource(c.String("docs"))
	if err != nil {
		return fmt.Errorf("failed to open document directory: %w", err)
	}

	var router *playbook.Router
	if dir := c.String("playbooks"); dir != "" {
		router, err = playbook.NewRouter(dir)
		if err != nil {
			return fmt.Errorf("failed to index playbooks: %w", err)
		}
	}

	var playbooks config.PlaybookSource
	if router != nil {
		playbooks = router
	}
	resolver := config.NewResolver(playbooks)

	var store storage.RecordStore
	if dbPath := c.String("db"); dbPath != "" {
		store, err = badger.Open(dbPath, false)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
	}

	runConf := runConfFromFlags(c)

	thresholds, err := parseGates(c.StringSlice("gate"))
	if err != nil {
		return err
	}

	preprocessOpts := []pipeline.PreprocessOption{
		pipeline.WithRunConf(runConf),
	}
	scoreOpts := []pipeline.ScoreOption{
		pipeline.WithScoreProgress(os.Stderr),
	}
	if router != nil {
		preprocessOpts = append(preprocessOpts, pipeline.WithPreprocessRouter(router))
	}
	if store != nil {
		preprocessOpts = append(preprocessOpts, pipeline.WithPreprocessStore(store))
		scoreOpts = append(scoreOpts, pipeline.WithScoreStore(store))
	}
	if size := c.Int("pool-size"); size > 0 {
		preprocessOpts = append(preprocessOpts, pipeline.WithPreprocessPoolSize(size))
		scoreOpts = append(scoreOpts, pipeline.WithScorePoolSize(size))
	}

	preprocess, err := pipeline.NewPreprocessStage(source, resolver, preprocessOpts...)
	if err != nil {
		return fmt.Errorf("failed to create preprocess stage: %w", err)
	}

	scoring, err := pipeline.NewScoreStage(buildScorer(c.Int("target-tokens")), scoreOpts...)
	if err != nil {
		return fmt.Errorf("failed to create score stage: %w", err)
	}

	logger := slog.Default()
	runner := pipeline.NewRunner(logger,
		preprocess,
		scoring,
		pipeline.NewFingerprintStage(store, logger),
		pipeline.NewPolicyStage(thresholds, store, logger),
	)

	run := pipeline.NewRunContext(c.String("product"), c.String("version"))

	fmt.Fprintf(os.Stderr, "Documents: %s\n", c.String("docs"))
	fmt.Fprintf(os.Stderr, "Product:   %s (%s)\n", run.ProductID, run.Version)
	fmt.Fprintf(os.Stderr, "Run:       %s\n", run.RunID)
	fmt.Fprintln(os.Stderr)

	results := runner.Run(ctx, run)
	printResults(results)
	printFingerprint(run.Fingerprint())
	printVerdict(run.Policy())

	for _, result := range results {
		if result.Status == core.StageFailed {
			return fmt.Errorf("stage %s failed: %s", result.Stage, result.Error)
		}
	}
	if policy := run.Policy(); policy != nil && !policy.Passed {
		return cli.Exit("quality gate failed", 1)
	}
	return nil
}

// buildScorer prefers the real tokenizer and falls back to pure heuristics
// when the encoding is unavailable, for example on air-gapped hosts.
func buildScorer(targetTokens int) score.ChunkScorer {
	heuristic := score.NewHeuristicScorer(score.WithTargetTokens(targetTokens))
	tokenizer, err := score.NewTokenizerScorer(targetTokens)
	if err != nil {
		slog.Warn("tokenizer unavailable, using heuristic scoring only", "err", err)
		return heuristic
	}
	return score.NewFallback(tokenizer, heuristic, slog.Default())
}

func runConfFromFlags(c *cli.Context) *config.RunConf {
	run := &config.RunConf{PlaybookID: c.String("playbook")}
	if c.IsSet("chunk-size") {
		run.ChunkSize = config.IntPtr(c.Int("chunk-size"))
	}
	if c.IsSet("chunk-overlap") {
		run.ChunkOverlap = config.IntPtr(c.Int("chunk-overlap"))
	}
	if c.IsSet("min-chunk-size") {
		run.MinChunkSize = config.IntPtr(c.Int("min-chunk-size"))
	}
	if c.IsSet("max-chunk-size") {
		run.MaxChunkSize = config.IntPtr(c.Int("max-chunk-size"))
	}
	if c.IsSet("strategy") {
		run.Strategy = config.StrPtr(c.String("strategy"))
	}
	return run
}

func parseGates(gates []string) (map[string]float64, error) {
	if len(gates) == 0 {
		return nil, nil
	}
	thresholds := make(map[string]float64, len(gates))
	for _, gate := range gates {
		name, value, ok := strings.Cut(gate, "=")
		if !ok {
			return nil, fmt.Errorf("invalid gate %q: expected name=value", gate)
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid gate %q: %w", gate, err)
		}
		thresholds[strings.TrimSpace(name)] = parsed
	}
	return thresholds, nil
}

func printResults(results []*core.StageResult) {
	fmt.Println()
	for _, result := range results {
		status := string(result.Status)
		switch result.Status {
		case core.StageSucceeded:
			status = color.GreenString(status)
		case core.StageFailed:
			status = color.RedString(status)
		case core.StageSkipped:
			status = color.YellowString(status)
		}
		fmt.Printf("%-12s %s (%s)\n", result.Stage, status,
			result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
		if result.Error != "" {
			fmt.Printf("             %s\n", result.Error)
		}
		for _, file := range result.FailedFiles {
			fmt.Printf("             failed: %s\n", file)
		}
	}
}

func printFingerprint(fp core.Fingerprint) {
	if fp == nil {
		return
	}
	fmt.Println("\nDocument fingerprint:")
	names := make([]string, 0, len(fp))
	for name := range fp {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-22s %6.2f\n", name, fp[name])
	}
}

func printVerdict(policy *core.PolicyResult) {
	if policy == nil {
		return
	}
	fmt.Println()
	if policy.Passed {
		color.Green("Quality gate: PASSED")
		return
	}
	color.Red("Quality gate: FAILED")
	for _, v := range policy.Violations {
		fmt.Printf("  %s: %.2f < %.2f\n", v.Metric, v.Actual, v.Threshold)
	}
}

func playbooksListCommand(c *cli.Context) error {
	router, err := playbook.NewRouter(c.String("playbooks"))
	if err != nil {
		return fmt.Errorf("failed to index playbooks: %w", err)
	}
	for _, id := range router.IDs() {
		_, cfg := router.Resolve(id)
		if cfg != nil && cfg.Description != "" {
			fmt.Printf("%-20s %s\n", id, cfg.Description)
			continue
		}
		fmt.Println(id)
	}
	return nil
}

func playbooksRouteCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	filename := c.Args().First()

	router, err := playbook.NewRouter(c.String("playbooks"))
	if err != nil {
		return fmt.Errorf("failed to index playbooks: %w", err)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	sample := string(data)
	if len(sample) > 2048 {
		sample = sample[:2048]
	}

	id, reason := router.Route(sample, filename)
	fmt.Printf("playbook: %s\nreason:   %s\n", id, reason)
	return nil
}

func playbooksResolveCommand(c *cli.Context) error {
	router, err := playbook.NewRouter(c.String("playbooks"))
	if err != nil {
		return fmt.Errorf("failed to index playbooks: %w", err)
	}

	resolver := config.NewResolver(router)
	eff := resolver.Resolve(runConfFromFlags(c), nil, "")

	fmt.Printf("playbook:       %s\n", eff.PlaybookID)
	fmt.Printf("chunk_size:     %d\n", eff.Chunking.ChunkSize)
	fmt.Printf("chunk_overlap:  %d\n", eff.Chunking.ChunkOverlap)
	fmt.Printf("min_chunk_size: %d\n", eff.Chunking.MinChunkSize)
	fmt.Printf("max_chunk_size: %d\n", eff.Chunking.MaxChunkSize)
	fmt.Printf("strategy:       %s\n", eff.Chunking.Strategy)

	fmt.Println("\nProvenance:")
	fields := make([]string, 0, len(eff.Trace))
	for field := range eff.Trace {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Printf("  %-18s <- %s\n", field, eff.Trace[field])
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
