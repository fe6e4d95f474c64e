package prep

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Capitalized abbreviations that do not terminate a sentence even when
// followed by a period and a capitalized word.
var abbreviations = map[string]bool{
	"dr": true, "mr": true, "mrs": true, "ms": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true, "etc": true,
	"fig": true, "no": true, "vol": true, "inc": true, "co": true,
	"eg": true, "ie": true, "al": true, "approx": true, "dept": true,
}

// SplitSentences splits text at sentence boundaries: terminal punctuation
// followed by whitespace and a capitalized (or numeric) start. A period after
// a capitalized abbreviation or a single initial is not a boundary, so
// "Dr. Smith said hello." stays one sentence.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '.' && ch != '!' && ch != '?' {
			continue
		}

		// Absorb trailing punctuation and closing quotes.
		end := i + 1
		for end < len(text) && isTrailing(text[end]) {
			end++
		}

		// A boundary needs whitespace after the punctuation run.
		next := end
		for next < len(text) && isSpace(text[next]) {
			next++
		}
		if next == end || next == len(text) {
			if next == len(text) {
				break
			}
			i = end - 1
			continue
		}

		// ...and a capitalized or numeric continuation.
		r, _ := utf8.DecodeRuneInString(text[next:])
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
			i = end - 1
			continue
		}

		if ch == '.' && isAbbreviation(text[start:i]) {
			i = end - 1
			continue
		}

		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = next
		i = next - 1
	}

	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// isAbbreviation reports whether the text preceding a period ends in a
// capitalized abbreviation or single initial.
func isAbbreviation(prefix string) bool {
	idx := strings.LastIndexAny(prefix, " \t\n(\"'")
	word := prefix[idx+1:]
	word = strings.Trim(word, ".")
	if word == "" {
		return false
	}

	r, _ := utf8.DecodeRuneInString(word)
	if !unicode.IsUpper(r) {
		return false
	}
	if utf8.RuneCountInString(word) == 1 {
		return true // single initial, e.g. "J. Smith"
	}
	return abbreviations[strings.ToLower(strings.ReplaceAll(word, ".", ""))]
}

func isTrailing(b byte) bool {
	switch b {
	case '.', '!', '?', '"', '\'', ')', ']':
		return true
	}
	return false
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
