package domain

import "context"

// Document is a source file whose extracted text is held in memory only.
type Document struct {
	Path    string
	Content string
}

// Chunk is a word window of a document, the unit of embedding and retrieval.
type Chunk struct {
	ID    string
	Index int
	Text  string
}

// Record is a vector written to the store. Text is always kept in the payload.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]any
}

// Match is a record returned by a similarity query, most similar first.
type Match struct {
	ID    string
	Text  string
	Score float64
}

// Extractor turns a file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer generates an answer for a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
