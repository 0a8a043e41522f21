package utils

// sentence-ending punctuation, ASCII and CJK
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
}

// SplitText splits a long string into chunks of approximately 'chunkSize'
// runes with 'overlap' runes carried between neighbours. Chunk boundaries
// prefer, in order: paragraph breaks, line breaks, sentence-ending
// punctuation, then whitespace. Only when none of those appear near the cut
// point does it split mid-word.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	totalLen := len(runes)
	if totalLen <= chunkSize {
		return []string{text}
	}

	if overlap >= chunkSize {
		overlap = 0 // fallback if overlap >= chunkSize
	}

	var chunks []string
	start := 0
	for start < totalLen {
		end := start + chunkSize
		if end >= totalLen {
			chunks = append(chunks, string(runes[start:totalLen]))
			break
		}

		end = snapToBoundary(runes, start, end)
		chunks = append(chunks, string(runes[start:end]))

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// snapToBoundary moves 'end' backwards to the nearest natural break. The
// search window is the last quarter of the chunk so boundaries never shrink
// a chunk too aggressively.
func snapToBoundary(runes []rune, start, end int) int {
	limit := end - (end-start)/4
	if limit <= start {
		limit = start + 1
	}

	// paragraph break
	for i := end - 1; i > limit; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	// line break
	for i := end - 1; i >= limit; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	// sentence end
	for i := end - 1; i >= limit; i-- {
		if sentenceEnders[runes[i]] {
			return i + 1
		}
	}
	// whitespace
	for i := end - 1; i >= limit; i-- {
		if runes[i] == ' ' || runes[i] == '\t' {
			return i + 1
		}
	}

	return end
}
