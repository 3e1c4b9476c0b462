package chunker

import (
	"strconv"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/errs"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// Split cuts text into windows of chunkSize whitespace-separated words, each
// window starting chunkSize-overlap words after the previous one. The last
// window may be shorter. Empty text yields an empty slice.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	words := strings.Fields(text)
	stride := chunkSize - overlap
	chunks := make([]string, 0, (len(words)+stride-1)/stride)
	for i := 0; i < len(words); i += stride {
		end := min(i+chunkSize, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks, nil
}

func validate(chunkSize, overlap int) error {
	const op = "chunker.Split"
	if chunkSize <= 0 {
		return errs.Errorf(errs.Configuration, op, "chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return errs.Errorf(errs.Configuration, op, "overlap must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return errs.Errorf(errs.Configuration, op, "overlap %d must be smaller than chunk size %d", overlap, chunkSize)
	}
	return nil
}

// WordChunker splits documents into overlapping word windows.
type WordChunker struct {
	chunkSize int
	overlap   int
}

// NewWordChunker validates the window parameters up front so a bad
// configuration fails before any document is read.
func NewWordChunker(chunkSize, overlap int) (*WordChunker, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &WordChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

func (c *WordChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	texts, err := Split(document.Content, c.chunkSize, c.overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:    "chunk-" + strconv.Itoa(i),
			Index: i,
			Text:  text,
		}
	}
	return chunks, nil
}
