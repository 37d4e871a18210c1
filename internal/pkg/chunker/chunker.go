// Package chunker splits normalized page text into overlapping, bounded
// windows. Offsets are rune positions, not token boundaries; the overlap
// keeps answer-relevant spans from being severed at a window edge.
package chunker

const (
	DefaultSize    = 1200
	DefaultOverlap = 200
)

// Split cuts text into windows of at most size runes, each consecutive pair
// overlapping by overlap runes. Text no longer than size yields a single
// chunk; empty text yields none. The final chunk ends exactly at the end of
// the text, so the last pair may overlap by more than overlap but no content
// is ever dropped or extended past the input.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 6
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
