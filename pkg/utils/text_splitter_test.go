package utils

import (
	"strings"
	"testing"
)

func TestSplitTextShortInput(t *testing.T) {
	text := "short text"
	chunks := SplitText(text, 1200, 250)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("short input must pass through unchanged, got %q", chunks[0])
	}
}

func TestSplitTextChunkSizes(t *testing.T) {
	text := strings.Repeat("word ", 1000) // 5000 runes
	chunks := SplitText(text, 1200, 250)

	if len(chunks) < 4 {
		t.Fatalf("expected at least 4 chunks for 5000 runes, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if got := len([]rune(chunk)); got > 1200 {
			t.Errorf("chunk %d exceeds size limit: %d runes", i, got)
		}
	}
}

func TestSplitTextOverlap(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta. ", 200)
	chunks := SplitText(text, 500, 100)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// Each chunk after the first must start with text already seen at the
	// tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		head := []rune(chunks[i])
		if len(head) > 50 {
			head = head[:50]
		}
		if !strings.Contains(chunks[i-1], string(head)) {
			t.Errorf("chunk %d does not overlap its predecessor", i)
		}
	}
}

func TestSplitTextPrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("x", 450)
	text := para + "\n\n" + para + "\n\n" + para
	chunks := SplitText(text, 500, 0)

	if !strings.HasSuffix(chunks[0], "\n") {
		t.Errorf("expected first chunk to end at the paragraph break, got %d runes ending in %q",
			len([]rune(chunks[0])), chunks[0][len(chunks[0])-1:])
	}
}

func TestSplitTextOverlapLargerThanChunk(t *testing.T) {
	text := strings.Repeat("y", 3000)
	chunks := SplitText(text, 500, 600)

	// Degenerate overlap must not loop forever or produce empty chunks.
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	total := 0
	for _, c := range chunks {
		if c == "" {
			t.Error("empty chunk produced")
		}
		total += len([]rune(c))
	}
	if total < 3000 {
		t.Errorf("chunks lost content: %d of 3000 runes covered", total)
	}
}
