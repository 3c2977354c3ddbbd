package retrieval

// Default chunking parameters. A thousand characters is roughly a
// paragraph, and the overlap keeps sentences that straddle a boundary
// retrievable from both sides.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// SplitText splits text into chunks of at most size characters, with
// overlap characters shared between consecutive chunks. Non-positive
// size or overlap fall back to the defaults; overlap is clamped below
// size so the split always advances.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size - 1
	}

	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
