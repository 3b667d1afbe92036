package port

import "talktocode/internal/domain"

type Chunker interface {
	Split(parentID, text string) []domain.Chunk
}
