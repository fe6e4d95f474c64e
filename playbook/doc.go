// Package playbook loads and routes playbook configurations.
//
// A playbook is a named YAML bundle of normalizer rules, page fences, header
// rules, chunking defaults, and quality gates. The Router maintains an
// in-memory index from normalized playbook ids to config paths, resolves ids
// case- and delimiter-insensitively, and can auto-route a document to a
// playbook from content and filename heuristics.
//
// The index is read-mostly: lookups take a read lock, and Refresh builds a
// complete new snapshot before swapping it in, so concurrent readers never
// observe a partially built index.
package playbook
