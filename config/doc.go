// Package config resolves the effective chunking configuration for a
// pipeline run.
//
// Each chunking field passes independently through five precedence levels,
// highest first: run overrides, forced product chunking config, product
// manual settings, playbook defaults (refined by content-type defaults when
// the detected content type is specific), and hard-coded global defaults.
// A nil value at any level is transparent and never overrides a concrete
// lower-precedence value. Every resolved field records the level that
// supplied it in a ResolutionTrace.
package config
