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
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is a parsed playbook: the named configuration bundle that drives
// normalization, page/section splitting, chunking defaults, and quality gates
// for one class of documents. Immutable once loaded.
type Config struct {
	ID             string             `yaml:"id"`
	Description    string             `yaml:"description"`
	PreNormalizers []NormalizerStep   `yaml:"pre_normalizers"`
	PageFences     []string           `yaml:"page_fences"`
	Headers        []string           `yaml:"headers"`
	SectionAliases map[string]string  `yaml:"section_aliases"`
	AudienceRules  []AudienceRule     `yaml:"audience_rules"`
	Chunking       ChunkingDefaults   `yaml:"chunking"`
	QualityGates   map[string]float64 `yaml:"quality_gates"`
}

// NormalizerStep is one ordered regex normalization rule supplied by a playbook.
type NormalizerStep struct {
	Pattern PatternSpec `yaml:"pattern"`
	Replace string      `yaml:"replace"`
	Flags   string      `yaml:"flags"`
}

// AudienceRule assigns an audience tag to sections whose canonical name or
// body matches the pattern.
type AudienceRule struct {
	Pattern  string `yaml:"pattern"`
	Audience string `yaml:"audience"`
}

// ChunkingDefaults are the playbook-level chunking parameters. All fields are
// optional; nil fields are transparent during configuration resolution.
type ChunkingDefaults struct {
	MaxTokens        *int    `yaml:"max_tokens"`
	OverlapSentences *int    `yaml:"overlap_sentences"`
	HardOverlapChars *int    `yaml:"hard_overlap_chars"`
	Strategy         *string `yaml:"strategy"`
}

// PatternSpec is a regex pattern that may be written in YAML either as a
// plain string or as a list of characters, which is interpreted as a
// character class. Any other shape marks the spec invalid; invalid specs are
// skipped by the normalizer rather than aborting the run.
type PatternSpec struct {
	expr  string
	valid bool
}

// NewPattern builds a valid PatternSpec from a regex string. Intended for
// tests and programmatic playbook construction.
func NewPattern(expr string) PatternSpec {
	return PatternSpec{expr: expr, valid: true}
}

// Expr returns the regex source and whether the spec was well-formed.
func (p PatternSpec) Expr() (string, bool) {
	return p.expr, p.valid
}

// Compile compiles the pattern with the given flag string ("i", "m", "s" in
// any combination). Returns an error for invalid specs or bad regexes.
func (p PatternSpec) Compile(flags string) (*regexp.Regexp, error) {
	if !p.valid {
		return nil, fmt.Errorf("%w: pattern is not a string or character list", ErrBadPattern)
	}
	expr := p.expr
	if mode := flagPrefix(flags); mode != "" {
		expr = mode + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPattern, err)
	}
	return re, nil
}

// UnmarshalYAML accepts a scalar string or a sequence of single characters.
func (p *PatternSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		p.expr = s
		p.valid = true
	case yaml.SequenceNode:
		var chars []string
		if err := value.Decode(&chars); err != nil {
			// Leave the spec invalid; the normalizer skips it with a warning.
			p.valid = false
			return nil
		}
		var b strings.Builder
		b.WriteByte('[')
		for _, c := range chars {
			b.WriteString(regexp.QuoteMeta(c))
		}
		b.WriteByte(']')
		p.expr = b.String()
		p.valid = true
	default:
		p.valid = false
	}
	return nil
}

// flagPrefix translates flag letters into a regexp mode prefix.
func flagPrefix(flags string) string {
	var b strings.Builder
	for _, f := range strings.ToLower(flags) {
		switch f {
		case 'i', 'm', 's':
			b.WriteRune(f)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "(?" + b.String() + ")"
}
