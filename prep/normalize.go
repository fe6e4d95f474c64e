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


package prep

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/chunkwise/playbook"
)

// Redaction tokens substituted for PII matches.
const (
	RedactedEmail = "[EMAIL_REDACTED]"
	RedactedPhone = "[PHONE_REDACTED]"
	RedactedSSN   = "[SSN_REDACTED]"
)

var (
	hyphenBreakPattern = regexp.MustCompile(`([A-Za-z])-\n[ \t]*([A-Za-z])`)
	blankRunPattern    = regexp.MustCompile(`\n{3,}`)

	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`(\+?1[\s.\-])?\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

// compiledStep is a playbook normalizer step that survived compilation.
type compiledStep struct {
	re      *regexp.Regexp
	replace string
}

// Normalizer applies line unwrapping, PII redaction, and the active
// playbook's ordered regex steps to whole documents.
type Normalizer struct {
	steps  []compiledStep
	logger *slog.Logger
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithNormalizerLogger sets a custom logger. Default is slog.Default().
func WithNormalizerLogger(logger *slog.Logger) NormalizerOption {
	return func(n *Normalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNormalizer compiles the playbook steps up front. A step whose pattern is
// not a string or character list, or whose regex does not compile, is skipped
// with a warning; normalization never aborts on one bad rule.
func NewNormalizer(steps []playbook.NormalizerStep, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}

	for i, step := range steps {
		re, err := step.Pattern.Compile(step.Flags)
		if err != nil {
			expr, _ := step.Pattern.Expr()
			n.logger.Warn("skipping normalizer step", "step", i, "pattern", expr, "err", err)
			continue
		}
		n.steps = append(n.steps, compiledStep{re: re, replace: step.Replace})
	}

	return n
}

// Apply normalizes a whole document: unwrap, redact, then the playbook steps
// in order.
func (n *Normalizer) Apply(text string) string {
	text = Unwrap(text)
	text = RedactPII(text)
	for _, step := range n.steps {
		text = step.re.ReplaceAllString(text, step.replace)
	}
	return text
}

// Steps returns the number of playbook steps that compiled successfully.
func (n *Normalizer) Steps() int {
	return len(n.steps)
}

// Unwrap reconstructs paragraphs from hard-wrapped text: hyphen-broken words
// are merged across line breaks, a soft break is joined when the preceding
// line does not end in sentence punctuation and the next line continues in
// lowercase, and runs of 3+ blank lines collapse to 2.
func Unwrap(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = hyphenBreakPattern.ReplaceAllString(text, "$1$2")

	lines := strings.Split(text, "\n")
	var b strings.Builder
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		b.WriteString(trimmed)
		if i == len(lines)-1 {
			break
		}
		if joinsWithNext(trimmed, lines[i+1]) {
			b.WriteByte(' ')
			lines[i+1] = strings.TrimLeft(lines[i+1], " \t")
		} else {
			b.WriteByte('\n')
		}
	}

	return blankRunPattern.ReplaceAllString(b.String(), "\n\n")
}

// joinsWithNext reports whether a newline is a soft wrap rather than a
// structural break. Headers and list items keep their own lines because a
// continuation must start in lowercase.
func joinsWithNext(line, next string) bool {
	if line == "" {
		return false
	}
	if endsSentence(line) {
		return false
	}
	next = strings.TrimSpace(next)
	if next == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(next)
	return unicode.IsLower(r)
}

// endsSentence reports whether a line ends with sentence punctuation,
// allowing a trailing quote or bracket.
func endsSentence(line string) bool {
	line = strings.TrimRight(line, `"')]`)
	if line == "" {
		return false
	}
	switch line[len(line)-1] {
	case '.', '!', '?', ':', ';':
		return true
	}
	return false
}

// RedactPII replaces email, phone, and SSN-shaped substrings with fixed
// tokens. SSNs are handled first so the phone pattern cannot claim them.
func RedactPII(text string) string {
	text = ssnPattern.ReplaceAllString(text, RedactedSSN)
	text = emailPattern.ReplaceAllString(text, RedactedEmail)
	text = phonePattern.ReplaceAllString(text, RedactedPhone)
	return text
}

// PIIHits counts email, phone, and SSN-shaped matches in text. Used by the
// heuristic trust scorer as a security signal.
func PIIHits(text string) int {
	return len(ssnPattern.FindAllString(text, -1)) +
		len(emailPattern.FindAllString(text, -1)) +
		len(phonePattern.FindAllString(text, -1))
}
