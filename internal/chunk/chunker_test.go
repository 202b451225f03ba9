package chunk

import (
	"strings"
	"testing"
)

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog."

	chunks := Split(text, 512, 50)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("expected text unchanged, got %q", chunks[0])
	}
}

func TestSplit_EmptyText(t *testing.T) {
	if got := Split("", 512, 50); got != nil {
		t.Errorf("expected nil for empty text, got %v", got)
	}
	if got := Split("   \n\t  ", 512, 50); got != nil {
		t.Errorf("expected nil for whitespace text, got %v", got)
	}
}

func TestSplit_ChunkCountBound(t *testing.T) {
	text := strings.Repeat("One sentence here. Another follows it. ", 200)
	size, overlap := 512, 50

	chunks := Split(text, size, overlap)

	n := len([]rune(text))
	bound := (n+size-overlap-1)/(size-overlap) + 1
	if len(chunks) > bound {
		t.Errorf("expected at most %d chunks for %d chars, got %d", bound, n, len(chunks))
	}
	if len(chunks) < 2 {
		t.Errorf("expected multiple chunks, got %d", len(chunks))
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	text := strings.Repeat("Ishmael went to sea whenever it was a damp November in his soul. ", 60)
	overlap := 50

	chunks := Split(text, 512, overlap)

	var b strings.Builder
	for i, c := range chunks {
		r := []rune(c)
		if i == 0 {
			b.WriteString(c)
			continue
		}
		if len(r) < overlap {
			t.Fatalf("chunk %d shorter than overlap: %d chars", i, len(r))
		}
		b.WriteString(string(r[overlap:]))
	}

	if b.String() != text {
		t.Errorf("concatenating chunks with overlap removed did not reconstruct input:\ngot %d chars, want %d", b.Len(), len(text))
	}
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	// A terminator lands past the window midpoint, so the first chunk must
	// end right after it instead of cutting mid-sentence.
	text := strings.Repeat("a", 400) + ". " + strings.Repeat("b", 400)

	chunks := Split(text, 512, 50)

	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("expected first chunk to end at sentence terminator, got suffix %q", chunks[0][len(chunks[0])-5:])
	}
}

func TestSplit_FallsBackToWordBoundary(t *testing.T) {
	// No terminators at all; a space sits in the last 20% of the window.
	words := strings.Repeat("abcdefghi ", 100)

	chunks := Split(words, 512, 50)

	first := chunks[0]
	if strings.HasSuffix(first, " ") {
		t.Errorf("expected chunk to exclude the boundary space")
	}
	next := []rune(words)[len([]rune(first))]
	if next != ' ' {
		t.Errorf("expected break at a word boundary, next char is %q", next)
	}
}

func TestSplit_HardCutWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("x", 1200)

	chunks := Split(text, 512, 50)

	for i, c := range chunks {
		if len([]rune(c)) > 512 {
			t.Errorf("chunk %d exceeds window size: %d chars", i, len([]rune(c)))
		}
	}
	if len(chunks[0]) != 512 {
		t.Errorf("expected hard cut at 512, got %d", len(chunks[0]))
	}
}

func TestSplit_NoChunkExceedsSize(t *testing.T) {
	text := strings.Repeat("Call me Ishmael. Some years ago, never mind how long precisely. ", 80)

	for _, c := range Split(text, 512, 50) {
		if n := len([]rune(c)); n > 512 {
			t.Errorf("chunk of %d chars exceeds size", n)
		}
	}
}
