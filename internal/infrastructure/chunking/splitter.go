package chunking

import "github.com/kirillkom/uniconnect/internal/core/ports"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Splitter cuts text into fixed windows of at most size characters.
// Consecutive windows share exactly overlap characters; the last window is
// the only one that may be shorter.
type Splitter struct {
	size    int
	overlap int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		size:    chunkSize,
		overlap: overlap,
	}
}

// Factory adapts NewSplitter to ports.ChunkerFactory.
func Factory(chunkSize, overlap int) ports.Chunker {
	return NewSplitter(chunkSize, overlap)
}

func (s *Splitter) Size() int { return s.size }

func (s *Splitter) Overlap() int { return s.overlap }

// Split never trims: trimming would break the shared overlap region.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.size - s.overlap
	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
