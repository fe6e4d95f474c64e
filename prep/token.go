package prep

import "strings"

// Estimator approximates LLM token counts for chunk sizing. The estimator is
// pluggable: swapping in a real tokenizer requires recalibrating chunk-size
// thresholds and the token-count scoring curve together.
type Estimator func(s string) int

// EstimateTokens is the default estimator: max(len/4, word count). The
// character term tracks subword tokenization of prose; the word-count floor
// guards against whitespace-heavy text.
func EstimateTokens(s string) int {
	byChars := len(s) / 4
	byWords := len(strings.Fields(s))
	if byWords > byChars {
		return byWords
	}
	return byChars
}
