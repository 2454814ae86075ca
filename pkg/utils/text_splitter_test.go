package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitTextShortInput(t *testing.T) {
	assert.Equal(t, []string{"hello world"}, SplitText("  hello world ", 100, 10))
	assert.Nil(t, SplitText("   ", 100, 10))
}

func TestSplitTextKeepsWordsWhole(t *testing.T) {
	text := "reset your password from the account settings page"
	chunks := SplitText(text, 20, 0)

	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 20)
		for _, word := range strings.Fields(c) {
			assert.Contains(t, text, word)
		}
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(chunks, " ")))
}

func TestSplitTextOverlap(t *testing.T) {
	text := strings.Repeat("a", 30)
	chunks := SplitText(text, 10, 4)

	assert.Equal(t, "aaaaaaaaaa", chunks[0])
	// each step advances chunkSize-overlap runes
	assert.Len(t, chunks, 5)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
}

func TestSplitTextCountsRunes(t *testing.T) {
	text := strings.Repeat("é", 12)
	chunks := SplitText(text, 6, 0)
	assert.Equal(t, []string{strings.Repeat("é", 6), strings.Repeat("é", 6)}, chunks)
}
