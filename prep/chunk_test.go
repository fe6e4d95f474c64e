package prep

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func TestChunker_SentenceStrategy_AbbreviationStaysWhole(t *testing.T) {
	c := NewChunker(1000, WithStrategy(StrategySentence))

	chunks := c.Split("Dr. Smith said hello. Then the patient left.")

	require.Len(t, chunks, 1)
	assert.Equal(t, "Dr. Smith said hello. Then the patient left.", chunks[0])
}

func TestChunker_SentenceStrategy_PacksUnderBudget(t *testing.T) {
	c := NewChunker(8,
		WithStrategy(StrategySentence),
		WithEstimator(wordCount),
		WithOverlapSentences(0),
	)

	text := "One two three four. Five six seven. Eight nine ten eleven. Twelve thirteen."
	chunks := c.Split(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, "One two three four. Five six seven.", chunks[0])
	assert.Equal(t, "Eight nine ten eleven. Twelve thirteen.", chunks[1])
	for _, chunk := range chunks {
		assert.LessOrEqual(t, wordCount(chunk), 8)
	}
}

func TestChunker_SentenceStrategy_OverlapSeedsNextChunk(t *testing.T) {
	c := NewChunker(8,
		WithStrategy(StrategySentence),
		WithEstimator(wordCount),
		WithOverlapSentences(1),
	)

	text := "One two three four. Five six seven. Eight nine ten."
	chunks := c.Split(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, "One two three four. Five six seven.", chunks[0])
	// The second chunk is seeded with the trailing sentence of the first.
	assert.Equal(t, "Five six seven. Eight nine ten.", chunks[1])
}

func TestChunker_SentenceStrategy_OverlapDroppedWhenOverBudget(t *testing.T) {
	c := NewChunker(5,
		WithStrategy(StrategySentence),
		WithEstimator(wordCount),
		WithOverlapSentences(1),
	)

	// Seeding the 4-word trailer ahead of the 4-word follower would blow the
	// budget, so the seed is dropped instead.
	text := "One two three four. Five six seven eight."
	chunks := c.Split(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, "One two three four.", chunks[0])
	assert.Equal(t, "Five six seven eight.", chunks[1])
}

func TestChunker_SentenceStrategy_OversizedSentenceForcedThroughChars(t *testing.T) {
	c := NewChunker(5, WithStrategy(StrategySentence), WithOverlapChars(0))

	oversized := strings.Repeat("abcd ", 40) // one "sentence", ~50 tokens
	chunks := c.Split(oversized)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), c.MaxTokens()*bytesPerToken)
	}
}

func TestChunker_CharStrategy_WindowAndOverlap(t *testing.T) {
	c := NewChunker(5, WithOverlapChars(5)) // window 20, step 15

	text := strings.Repeat("x", 50)
	chunks := c.Split(text)

	// Windows [0:20), [15:35), [30:50); the scan stops once a window
	// reaches the end of the input.
	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.Equal(t, strings.Repeat("x", 20), chunk)
	}
}

func TestChunker_CharStrategy_StepAlwaysAdvances(t *testing.T) {
	// Overlap larger than the window must not stall the scan.
	c := NewChunker(2, WithOverlapChars(500))

	chunks := c.Split(strings.Repeat("y", 30))
	assert.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 2*bytesPerToken)
	}
}

func TestChunker_CharStrategy_MultibyteRunesStayIntact(t *testing.T) {
	// 3-byte runes against a 100-byte window: naive byte slicing would cut
	// runes apart at every window boundary.
	c := NewChunker(25, WithOverlapChars(0))

	text := strings.Repeat("語", 200)
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	total := 0
	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %d is not valid UTF-8", i)
		total += utf8.RuneCountInString(chunk)
	}
	// Boundary snapping must not drop or duplicate any rune.
	assert.Equal(t, 200, total)
}

func TestChunker_SentenceStrategy_MultibyteForcedFallback(t *testing.T) {
	// A single oversized multi-byte sentence goes through the character
	// fallback; the pieces must still be valid UTF-8.
	c := NewChunker(10, WithStrategy(StrategySentence), WithOverlapChars(0))

	chunks := c.Split(strings.Repeat("研究", 100) + ".")
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %d is not valid UTF-8", i)
	}
}

func TestChunker_EmptyAndWhitespaceInput(t *testing.T) {
	c := NewChunker(100, WithStrategy(StrategySentence))
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestChunker_UnknownStrategyFallsBackToChars(t *testing.T) {
	c := NewChunker(5, WithStrategy("semantic_magic"), WithOverlapChars(0))

	chunks := c.Split(strings.Repeat("z", 45))
	require.Len(t, chunks, 3)
	assert.Equal(t, 20, len(chunks[0]))
}

func TestChunker_RecursiveStrategy(t *testing.T) {
	c := NewChunker(25, WithStrategy(StrategyRecursive), WithOverlapChars(20))

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.NotEmpty(t, chunk)
		assert.LessOrEqual(t, len(chunk), 25*bytesPerToken)
	}
}

func TestChunker_MinimumBudgetClamped(t *testing.T) {
	c := NewChunker(0)
	assert.Equal(t, 1, c.MaxTokens())
}

// Every chunk produced by the sentence strategy respects the token budget, or,
// when a single sentence alone exceeds it, the character budget instead.
func TestChunkerProperty_SentenceBudgetHolds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxTokens := rapid.IntRange(3, 60).Draw(t, "maxTokens")
		overlap := rapid.IntRange(0, 3).Draw(t, "overlap")

		nSentences := rapid.IntRange(1, 20).Draw(t, "nSentences")
		var sb strings.Builder
		for i := 0; i < nSentences; i++ {
			nWords := rapid.IntRange(1, 30).Draw(t, "nWords")
			words := make([]string, nWords)
			for j := range words {
				words[j] = rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "word")
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sentence := strings.Join(words, " ")
			sb.WriteString(strings.ToUpper(sentence[:1]) + sentence[1:])
			sb.WriteByte('.')
		}

		c := NewChunker(maxTokens,
			WithStrategy(StrategySentence),
			WithOverlapSentences(overlap),
			WithOverlapChars(0),
		)
		for _, chunk := range c.Split(sb.String()) {
			withinTokens := EstimateTokens(chunk) <= maxTokens
			withinChars := len(chunk) <= maxTokens*bytesPerToken
			if !withinTokens && !withinChars {
				t.Fatalf("chunk of %d tokens / %d chars exceeds budget %d",
					EstimateTokens(chunk), len(chunk), maxTokens)
			}
		}
	})
}

// Character chunking always terminates and covers the tail of the input.
func TestChunkerProperty_CharChunkingCoversTail(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxTokens := rapid.IntRange(1, 50).Draw(t, "maxTokens")
		overlap := rapid.IntRange(0, 300).Draw(t, "overlap")
		text := rapid.StringMatching(`[a-z ]{1,400}`).Draw(t, "text")
		if strings.TrimSpace(text) == "" {
			t.Skip("whitespace only")
		}

		c := NewChunker(maxTokens, WithOverlapChars(overlap))
		chunks := c.Split(text)

		if len(chunks) == 0 {
			t.Fatalf("no chunks for non-empty input")
		}
		for _, chunk := range chunks {
			if len(chunk) > maxTokens*bytesPerToken {
				t.Fatalf("chunk of %d chars exceeds window %d", len(chunk), maxTokens*bytesPerToken)
			}
		}
	})
}
