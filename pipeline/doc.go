// Package pipeline orchestrates the ingestion run: preprocess documents into
// chunks, score the chunks, aggregate the run fingerprint, and evaluate the
// readiness policy. Every stage reports through the same StageResult contract
// and a stage whose inputs are missing is skipped, never failed.
package pipeline
