package chunker

import (
	"strings"

	"github.com/dkoval/ragbox/internal/models"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

type Config struct {
	ChunkSize int
	// ChunkOverlap is a pointer so an explicit zero (disjoint windows)
	// is distinguishable from unset; nil means DefaultChunkOverlap.
	ChunkOverlap *int
}

// Chunker splits document text into fixed-size overlapping windows.
// Windows start at offsets 0, S-O, 2(S-O), ... so that consecutive
// chunks share exactly the overlap while the remaining text exceeds
// the chunk size. Sizes are measured in runes.
type Chunker struct {
	size    int
	overlap int
}

func NewWithConfig(config Config) Chunker {
	size := config.ChunkSize
	if size == 0 {
		size = DefaultChunkSize
	}
	overlap := DefaultChunkOverlap
	if config.ChunkOverlap != nil {
		overlap = *config.ChunkOverlap
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 4
	}

	return Chunker{
		size:    size,
		overlap: overlap,
	}
}

// Split chunks each document independently; no chunk crosses a
// document boundary. Documents with empty or whitespace-only content
// yield no chunks.
func (c Chunker) Split(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk

	for _, doc := range docs {
		for _, piece := range c.splitText(doc.Content) {
			chunks = append(chunks, models.Chunk{
				Source:   doc.Source,
				Content:  piece,
				Metadata: doc.Metadata,
			})
		}
	}

	return chunks
}

func (c Chunker) splitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	total := len(runes)
	step := c.size - c.overlap

	var pieces []string
	for start := 0; start < total; start += step {
		end := start + c.size
		if end > total {
			end = total
		}

		pieces = append(pieces, string(runes[start:end]))

		// The window reaching the end of the text is always the last
		// chunk; a text no longer than the chunk size yields exactly one.
		if end == total {
			break
		}
	}

	return pieces
}
