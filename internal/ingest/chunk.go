package ingest

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Split cuts text into windows of size characters, each starting
// size-overlap after the previous one. Offsets count runes so multi-byte
// text is never split mid-character. An overlap that would stall the
// window is ignored.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
