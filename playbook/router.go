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


package playbook

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultID is the global fallback playbook id.
const DefaultID = "TECH"

// Router resolves playbook identifiers to parsed configurations. Lookups are
// case- and delimiter-insensitive. The index is rebuilt on demand with
// copy-then-swap semantics.
type Router struct {
	dir          string
	defaultID    string
	scannedID    string
	regulatoryID string
	logger       *slog.Logger

	mu      sync.RWMutex
	index   map[string]string  // normalized id → config path
	ordered []string           // normalized ids in stable order
	configs map[string]*Config // normalized id → parsed config cache
}

// Option configures a Router.
type Option func(*Router) error

// WithDefaultPlaybook sets the fallback playbook id used on lookup misses.
// Default is "TECH".
func WithDefaultPlaybook(id string) Option {
	return func(r *Router) error {
		if id != "" {
			r.defaultID = id
		}
		return nil
	}
}

// WithScannedPlaybook sets the playbook id routed to when OCR/scanned
// indicators are detected. Default is "SCANNED".
func WithScannedPlaybook(id string) Option {
	return func(r *Router) error {
		if id != "" {
			r.scannedID = id
		}
		return nil
	}
}

// WithRegulatoryPlaybook sets the playbook id routed to when regulatory or
// safety indicators are detected. Default is "REGULATORY".
func WithRegulatoryPlaybook(id string) Option {
	return func(r *Router) error {
		if id != "" {
			r.regulatoryID = id
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRouter creates a Router over a directory of playbook YAML files and
// builds the initial index.
func NewRouter(dir string, opts ...Option) (*Router, error) {
	if dir == "" {
		return nil, ErrDirectoryRequired
	}

	r := &Router{
		dir:          dir,
		defaultID:    DefaultID,
		scannedID:    "SCANNED",
		regulatoryID: "REGULATORY",
		logger:       slog.Default(),
		index:        map[string]string{},
		configs:      map[string]*Config{},
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if err := r.Refresh(); err != nil {
		return nil, err
	}

	return r, nil
}

// NormalizeID lowercases an id and strips dashes, underscores, and spaces so
// that "TECH", "tech", "T-E-C-H", and " tech " all address the same playbook.
func NormalizeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	return strings.Map(func(ch rune) rune {
		switch ch {
		case '-', '_', ' ':
			return -1
		}
		return ch
	}, id)
}

// Refresh rescans the playbook directory and swaps in a freshly built index.
// The parsed-config cache is replaced with the snapshot: stale entries never
// survive a refresh.
func (r *Router) Refresh() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	index := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		index[NormalizeID(stem)] = filepath.Join(r.dir, name)
	}

	ordered := make([]string, 0, len(index))
	for id := range index {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	r.mu.Lock()
	r.index = index
	r.ordered = ordered
	r.configs = make(map[string]*Config)
	r.mu.Unlock()

	r.logger.Debug("playbook index rebuilt", "dir", r.dir, "playbooks", len(index))
	return nil
}

// Resolve maps a playbook identifier to its parsed configuration. On a miss
// it falls back to the default id, then to the first indexed playbook, then
// to nil. The returned id is the normalized id that was actually resolved;
// it is empty when nothing could be resolved.
func (r *Router) Resolve(id string) (string, *Config) {
	r.mu.RLock()
	normalized := NormalizeID(id)
	path, ok := r.index[normalized]
	if !ok {
		normalized = NormalizeID(r.defaultID)
		path, ok = r.index[normalized]
	}
	if !ok && len(r.ordered) > 0 {
		normalized = r.ordered[0]
		path = r.index[normalized]
		ok = true
	}
	r.mu.RUnlock()

	if !ok {
		return "", nil
	}
	return normalized, r.load(normalized, path)
}

// Route inspects a text sample and filename for content signals and returns
// the playbook id to use along with the routing reason. With no signal it
// returns the default id and the reason "default".
func (r *Router) Route(sample, filename string) (string, string) {
	text := strings.ToLower(sample)
	name := strings.ToLower(filename)

	if containsAny(text, ocrIndicators) || containsAny(name, ocrFileIndicators) {
		return r.scannedID, "ocr_indicators"
	}
	if containsAny(text, regulatoryIndicators) || containsAny(name, regulatoryFileIndicators) {
		return r.regulatoryID, "regulatory_indicators"
	}
	return r.defaultID, "default"
}

// load parses the config at path, caching the result. A malformed playbook
// file degrades to an empty config so processing can continue with defaults.
func (r *Router) load(normalized, path string) *Config {
	r.mu.RLock()
	cfg, ok := r.configs[normalized]
	r.mu.RUnlock()
	if ok {
		return cfg
	}

	cfg = &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("failed to read playbook, using empty config", "path", path, "err", err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		r.logger.Warn("malformed playbook, using empty config", "path", path, "err", err)
		cfg = &Config{}
	}
	if cfg.ID == "" {
		cfg.ID = normalized
	}

	r.mu.Lock()
	r.configs[normalized] = cfg
	r.mu.Unlock()

	return cfg
}

// IDs returns the normalized ids currently in the index, in stable order.
func (r *Router) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

var (
	ocrIndicators = []string{
		"ocr", "scanned document", "scan quality", "\f",
	}
	ocrFileIndicators = []string{
		"scan", "ocr",
	}
	regulatoryIndicators = []string{
		"regulation", "regulatory", "compliance", "safety data sheet",
		"msds", "hazard", "osha", "directive",
	}
	regulatoryFileIndicators = []string{
		"sds", "regulatory", "compliance",
	}
)

func containsAny(s string, needles []string) bool {
	if s == "" {
		return false
	}
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
