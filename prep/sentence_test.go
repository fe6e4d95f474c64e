package prep

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentences(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "plain sentences",
			input:    "Prime the pump. Close the valve. Restart the unit.",
			expected: []string{"Prime the pump.", "Close the valve.", "Restart the unit."},
		},
		{
			name:     "abbreviation is not a boundary",
			input:    "Dr. Smith said hello. Then the patient left.",
			expected: []string{"Dr. Smith said hello.", "Then the patient left."},
		},
		{
			name:     "single initial is not a boundary",
			input:    "Contact J. Smith first. Then file the report.",
			expected: []string{"Contact J. Smith first.", "Then file the report."},
		},
		{
			name:     "question and exclamation marks",
			input:    "Is the seal intact? Replace it! Then retest.",
			expected: []string{"Is the seal intact?", "Replace it!", "Then retest."},
		},
		{
			name:     "lowercase continuation keeps one sentence",
			input:    "See section 4.2 for details.",
			expected: []string{"See section 4.2 for details."},
		},
		{
			name:     "closing quote absorbed into sentence",
			input:    `He said "stop." Then he left.`,
			expected: []string{`He said "stop."`, "Then he left."},
		},
		{
			name:     "numeric continuation is a boundary",
			input:    "Tighten the bolts. 45 Nm is the target torque.",
			expected: []string{"Tighten the bolts.", "45 Nm is the target torque."},
		},
		{
			name:     "no terminal punctuation yields one sentence",
			input:    "a fragment without punctuation",
			expected: []string{"a fragment without punctuation"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SplitSentences(tc.input))
		})
	}
}

func TestSplitSentences_MultilineProse(t *testing.T) {
	input := "The filter must be replaced monthly.\nSee Fig. 3 for the housing location. Remove the cover next."
	got := SplitSentences(input)

	assert.Equal(t, []string{
		"The filter must be replaced monthly.",
		"See Fig. 3 for the housing location.",
		"Remove the cover next.",
	}, got)
}
