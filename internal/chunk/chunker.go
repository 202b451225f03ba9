// Package chunk splits source text into overlapping spans sized for embedding.
package chunk

import "strings"

const (
	// DefaultSize is the window size in characters.
	DefaultSize = 512
	// DefaultOverlap is how many characters consecutive chunks share.
	DefaultOverlap = 50
)

// Split cuts text into ordered, non-empty, overlapping spans of at most size
// characters. Window ends prefer the last sentence terminator past the window
// midpoint, then the last space past 80% of the window, then a hard cut. Each
// next window starts overlap characters before the previous end; if that would
// not advance, the start is forced forward by size so progress is guaranteed.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
	}

	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			appendNonEmpty(&chunks, string(runes[start:]))
			break
		}

		end = adjustEnd(runes, start, end)
		appendNonEmpty(&chunks, string(runes[start:end]))

		next := end - overlap
		if next <= start {
			next = start + size
		}
		start = next
	}

	return chunks
}

// adjustEnd moves the window end back to a natural boundary when one exists
// late enough in the window.
func adjustEnd(runes []rune, start, end int) int {
	mid := start + (end-start)/2
	for i := end - 1; i > mid; i-- {
		switch runes[i] {
		case '.', '!', '?':
			return i + 1
		}
	}

	wordFloor := start + (end-start)*4/5
	for i := end - 1; i > wordFloor; i-- {
		if runes[i] == ' ' {
			return i
		}
	}

	return end
}

func appendNonEmpty(chunks *[]string, s string) {
	if strings.TrimSpace(s) != "" {
		*chunks = append(*chunks, s)
	}
}
