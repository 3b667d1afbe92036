package chunker

import (
	"strings"

	"talktocode/internal/domain"
)

// LineChunker splits file text into chunks of at most maxSize bytes,
// cutting only on line boundaries.
type LineChunker struct {
	maxSize int
}

func NewLineChunker(maxSize int) *LineChunker {
	return &LineChunker{maxSize: maxSize}
}

// Split cuts text into line-aligned chunks. Lines keep their terminators,
// so concatenating the chunks in index order reproduces the input exactly.
// A single line longer than maxSize is emitted whole as its own oversized
// chunk rather than being truncated or split mid-line. Empty input yields
// no chunks.
func (c *LineChunker) Split(parentID, text string) []domain.Chunk {
	if text == "" || c.maxSize <= 0 {
		return nil
	}

	var chunks []domain.Chunk
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		chunks = append(chunks, domain.Chunk{
			ParentID: parentID,
			Index:    len(chunks),
			Text:     buf.String(),
		})
		buf.Reset()
	}

	rest := text
	for rest != "" {
		line := rest
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line = rest[:i+1]
			rest = rest[i+1:]
		} else {
			rest = ""
		}

		if buf.Len() > 0 && buf.Len()+len(line) > c.maxSize {
			flush()
		}
		buf.WriteString(line)
	}
	flush()

	for i := range chunks {
		chunks[i].Total = len(chunks)
	}
	return chunks
}
