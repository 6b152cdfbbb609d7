// Package chunking cuts extracted page text into retrieval-sized chunks.
package chunking

import "strings"

// Splitter windows text by rune count with overlap. Cuts prefer a paragraph
// or sentence boundary near the window edge so one embedding does not
// straddle unrelated passages.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapToBoundary(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// snapToBoundary walks back from end looking for a newline, then for a
// sentence end, within the last fifth of the window. Returns end unchanged
// when the zone has neither.
func snapToBoundary(runes []rune, start, end int) int {
	limit := end - (end-start)/5
	if limit <= start {
		return end
	}
	for i := end - 1; i >= limit; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	for i := end - 1; i >= limit; i-- {
		if isSentenceEnd(runes[i]) && i+1 < len(runes) && runes[i+1] == ' ' {
			return i + 1
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
