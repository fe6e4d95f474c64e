// Package prep turns raw document text into retrieval-ready chunks.
//
// Processing is staged: the Normalizer unwraps wrapped lines, redacts PII,
// and applies playbook-supplied regex steps; the Splitter divides the result
// into pages (fence markers) and sections (header rules plus heuristics);
// the Chunker splits section bodies into chunks under a token budget using a
// sentence, character, or recursive strategy.
//
// A single malformed playbook rule never aborts processing: bad patterns are
// skipped with a logged warning.
package prep
