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
	"strconv"
	"strings"
	"unicode"

	"github.com/poiesic/chunkwise/playbook"
)

// DefaultSectionName is used when a document yields no headers.
const DefaultSectionName = "Introduction"

// maxSlugLen caps canonical section names derived from long titles.
const maxSlugLen = 40

// Page is a page-delimited span of a document.
type Page struct {
	Number int
	Text   string
}

// Section is one header-delimited span of a page.
type Section struct {
	TitleRaw string
	Name     string
	Body     string
}

// Splitter divides normalized text into pages and sections using the active
// playbook's fence and header rules plus built-in header heuristics.
type Splitter struct {
	fences  []*regexp.Regexp
	headers []*regexp.Regexp
	aliases map[string]string
	logger  *slog.Logger
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithSplitterLogger sets a custom logger. Default is slog.Default().
func WithSplitterLogger(logger *slog.Logger) SplitterOption {
	return func(s *Splitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSplitter compiles the playbook's fence and header patterns. Bad patterns
// are skipped with a warning. A nil playbook yields a heuristics-only splitter.
func NewSplitter(pb *playbook.Config, opts ...SplitterOption) *Splitter {
	s := &Splitter{
		aliases: map[string]string{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if pb == nil {
		return s
	}

	for _, expr := range pb.PageFences {
		re, err := regexp.Compile(expr)
		if err != nil {
			s.logger.Warn("skipping page fence", "pattern", expr, "err", err)
			continue
		}
		s.fences = append(s.fences, re)
	}
	for _, expr := range pb.Headers {
		re, err := regexp.Compile(expr)
		if err != nil {
			s.logger.Warn("skipping header rule", "pattern", expr, "err", err)
			continue
		}
		s.headers = append(s.headers, re)
	}
	for alias, canonical := range pb.SectionAliases {
		s.aliases[strings.ToLower(strings.TrimSpace(alias))] = canonical
	}

	return s
}

// Pages splits text into pages on fence markers. A fence line starts a new
// page, numbered by an explicit page number on the fence line when present,
// else by incrementing from the last page. Without fences the whole text is
// page 1.
func (s *Splitter) Pages(text string) []Page {
	if len(s.fences) == 0 {
		return []Page{{Number: 1, Text: text}}
	}

	var pages []Page
	var buf []string
	number := 1
	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if body != "" {
			pages = append(pages, Page{Number: number, Text: body})
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		fence := s.matchFence(line)
		if fence == nil {
			buf = append(buf, line)
			continue
		}
		flush()
		if n, ok := fenceNumber(fence, line); ok {
			number = n
		} else {
			number++
		}
	}
	flush()

	if len(pages) == 0 {
		return []Page{{Number: 1, Text: text}}
	}
	return pages
}

func (s *Splitter) matchFence(line string) *regexp.Regexp {
	trimmed := strings.TrimSpace(line)
	for _, re := range s.fences {
		if re.MatchString(trimmed) {
			return re
		}
	}
	return nil
}

var digitsPattern = regexp.MustCompile(`\d+`)

// fenceNumber extracts an explicit page number from a fence line: the first
// capture group when the pattern has one, else the first run of digits.
func fenceNumber(re *regexp.Regexp, line string) (int, bool) {
	trimmed := strings.TrimSpace(line)
	if m := re.FindStringSubmatch(trimmed); len(m) > 1 && m[1] != "" {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	if d := digitsPattern.FindString(trimmed); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Sections splits page text into header-delimited sections. Explicit header
// rules take precedence; otherwise heuristics fire in order: numbered lines,
// Title-Case lines of 2+ words, ALL-CAPS lines of 6+ characters and 2+ words.
// Text without any header becomes a single "Introduction" section.
func (s *Splitter) Sections(text string) []Section {
	var sections []Section
	title := DefaultSectionName
	var buf []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if body != "" {
			sections = append(sections, Section{
				TitleRaw: title,
				Name:     s.canonicalName(title),
				Body:     body,
			})
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if s.isHeader(trimmed) {
			flush()
			title = trimmed
			continue
		}
		buf = append(buf, line)
	}
	flush()

	if len(sections) == 0 {
		return []Section{{
			TitleRaw: DefaultSectionName,
			Name:     s.canonicalName(DefaultSectionName),
			Body:     strings.TrimSpace(text),
		}}
	}
	return sections
}

func (s *Splitter) isHeader(line string) bool {
	if line == "" {
		return false
	}
	for _, re := range s.headers {
		if re.MatchString(line) {
			return true
		}
	}
	return isNumberedHeader(line) || isTitleCaseHeader(line) || isAllCapsHeader(line)
}

var numberedHeaderPattern = regexp.MustCompile(`^\d{1,3}[.)]\s+\S+`)

func isNumberedHeader(line string) bool {
	return numberedHeaderPattern.MatchString(line)
}

// isTitleCaseHeader matches short Title-Case lines of 2+ words with no
// sentence-terminal punctuation.
func isTitleCaseHeader(line string) bool {
	if strings.ContainsAny(string(line[len(line)-1]), ".!?,;:") {
		return false
	}
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 8 {
		return false
	}
	for _, w := range words {
		r := []rune(w)[0]
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isAllCapsHeader(line string) bool {
	if len(line) < 6 || len(strings.Fields(line)) < 2 {
		return false
	}
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// canonicalName maps a raw title to its canonical section name: the alias
// table first, else a slugified, length-capped version of the title.
func (s *Splitter) canonicalName(title string) string {
	key := strings.ToLower(strings.TrimSpace(title))
	if canonical, ok := s.aliases[key]; ok {
		return canonical
	}
	return Slugify(title)
}

var leadingNumberPattern = regexp.MustCompile(`^\d{1,3}[.)]\s+`)

// Slugify lowercases a title, strips leading list numbering, and replaces
// non-alphanumeric runs with single underscores, capped at 40 characters.
func Slugify(title string) string {
	title = leadingNumberPattern.ReplaceAllString(strings.TrimSpace(title), "")
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	slug := strings.Trim(b.String(), "_")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "_")
	}
	if slug == "" {
		slug = "section"
	}
	return slug
}

// ResolveAudience returns the audience tag of the first rule whose pattern
// matches the section name or body. Bad rule patterns are skipped.
func ResolveAudience(rules []playbook.AudienceRule, section, body string) string {
	for _, rule := range rules {
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			continue
		}
		if re.MatchString(section) || re.MatchString(body) {
			return rule.Audience
		}
	}
	return ""
}
