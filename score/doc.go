// Package score computes per-chunk trust metrics and the aggregate trust
// score. The tokenizer-backed scorer is preferred; when its encoding cannot
// be loaded the fallback decorator degrades to the offline heuristic scorer
// so a run never fails for lack of a tokenizer.
package score
