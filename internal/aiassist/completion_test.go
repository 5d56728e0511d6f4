package aiassist

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompletionStripsFences(t *testing.T) {
	c := ParseCompletion("```json\n{\"shortSummary\":\"s\"}\n```")
	parsed, ok := c.(Parsed)
	require.True(t, ok)
	assert.JSONEq(t, `{"shortSummary":"s"}`, string(parsed.JSON))
}

func TestParseCompletionMalformed(t *testing.T) {
	c := ParseCompletion("Here is a summary. It covers graphs.")
	bad, ok := c.(Malformed)
	require.True(t, ok)
	assert.Equal(t, "Here is a summary. It covers graphs.", bad.Raw)
	assert.Error(t, bad.Err)
}

func TestFirstSentence(t *testing.T) {
	assert.Equal(t, "Graphs are everywhere.", firstSentence("Graphs are everywhere. Trees too."))
	assert.Equal(t, "no punctuation", firstSentence("no punctuation\nsecond line"))

	long := strings.Repeat("a", 400)
	got := firstSentence(long)
	assert.Equal(t, maxShortSummary, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}
