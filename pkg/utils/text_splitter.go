package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitText splits text into passages of at most chunkSize runes, repeating
// up to overlap runes of the previous passage at the start of the next.
// Cuts prefer the last whitespace inside the window so words stay whole.
func SplitText(text string, chunkSize int, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if chunkSize <= 0 || utf8.RuneCountInString(text) <= chunkSize {
		return []string{text}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	runes := []rune(text)
	total := len(runes)

	var chunks []string
	for start := 0; start < total; {
		end := start + chunkSize
		if end >= total {
			end = total
		} else if cut := lastSpace(runes[start:end]); cut > overlap {
			end = start + cut
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == total {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i > 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return -1
}
