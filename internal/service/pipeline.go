package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/errs"
	"docqa/internal/logger"
	"docqa/internal/vectorstore"
)

const (
	DefaultTopK             = 5
	DefaultBatchSize        = 40
	DefaultSummarySentences = 3

	contextSeparator = "\n\n---\n\n"
	promptTemplate   = "Please answer the question based on the following document content:\n\n%s\n\nQuestion: %s\nAnswer:"
)

// Deps are the collaborators of a Pipeline. Summarizer is optional.
type Deps struct {
	Log        *logger.Logger
	Extractor  domain.Extractor
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Completer  domain.Completer
	Index      vectorstore.Index
	Summarizer domain.Summarizer

	BatchSize        int
	SummarySentences int
}

// Pipeline runs document ingestion and question answering against one index.
type Pipeline struct {
	log        *logger.Logger
	extractor  domain.Extractor
	chunker    domain.Chunker
	embedder   domain.Embedder
	completer  domain.Completer
	index      vectorstore.Index
	summarizer domain.Summarizer

	batchSize        int
	summarySentences int
}

func NewPipeline(d Deps) (*Pipeline, error) {
	const op = "service.NewPipeline"
	switch {
	case d.Log == nil:
		return nil, errs.Errorf(errs.Configuration, op, "logger required")
	case d.Extractor == nil:
		return nil, errs.Errorf(errs.Configuration, op, "extractor required")
	case d.Chunker == nil:
		return nil, errs.Errorf(errs.Configuration, op, "chunker required")
	case d.Embedder == nil:
		return nil, errs.Errorf(errs.Configuration, op, "embedder required")
	case d.Completer == nil:
		return nil, errs.Errorf(errs.Configuration, op, "completer required")
	case d.Index == nil:
		return nil, errs.Errorf(errs.Configuration, op, "vector index required")
	}
	if d.BatchSize <= 0 {
		d.BatchSize = DefaultBatchSize
	}
	if d.SummarySentences <= 0 {
		d.SummarySentences = DefaultSummarySentences
	}
	return &Pipeline{
		log:              d.Log.With("service", "Pipeline"),
		extractor:        d.Extractor,
		chunker:          d.Chunker,
		embedder:         d.Embedder,
		completer:        d.Completer,
		index:            d.Index,
		summarizer:       d.Summarizer,
		batchSize:        d.BatchSize,
		summarySentences: d.SummarySentences,
	}, nil
}

type IngestOptions struct {
	// Overwrite replaces an existing namespace instead of rejecting the ingest.
	Overwrite bool
}

type IngestResult struct {
	Chunks  int
	Summary string
}

// Ingest extracts, chunks, embeds and stores one PDF under namespace.
// Nothing is written until every chunk has been embedded.
func (p *Pipeline) Ingest(ctx context.Context, path, namespace string, opts IngestOptions) (IngestResult, error) {
	const op = "service.Ingest"
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = NamespaceFromFilename(path)
	}
	log := p.log.With("run_id", uuid.NewString(), "namespace", namespace, "source", filepath.Base(path))
	start := time.Now()

	stats, err := p.index.Stats(ctx)
	if err != nil {
		return IngestResult{}, err
	}
	existing := stats[namespace]
	if existing > 0 && !opts.Overwrite {
		return IngestResult{}, errs.E(errs.Conflict, op, fmt.Errorf("%w: %q has %d records", errs.ErrNamespaceExists, namespace, existing))
	}

	text, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return IngestResult{}, err
	}
	chunks, err := p.chunker.Chunk(domain.Document{Path: path, Content: text})
	if err != nil {
		return IngestResult{}, err
	}
	log.Info("document chunked", "chars", len(text), "chunks", len(chunks))

	source := filepath.Base(path)
	records := make([]domain.Record, 0, len(chunks))
	for _, ch := range chunks {
		vec, err := p.embedder.Embed(ctx, ch.Text)
		if err != nil {
			return IngestResult{}, err
		}
		records = append(records, domain.Record{
			ID:     ch.ID,
			Vector: vec,
			Text:   ch.Text,
			Metadata: map[string]any{
				"source":      source,
				"chunk_index": ch.Index,
			},
		})
	}

	if existing > 0 {
		log.Info("overwriting namespace", "existing_records", existing)
		if err := p.index.DeleteNamespace(ctx, namespace); err != nil {
			return IngestResult{}, err
		}
	}
	for i := 0; i < len(records); i += p.batchSize {
		batch := records[i:min(i+p.batchSize, len(records))]
		if err := p.index.Upsert(ctx, namespace, batch); err != nil {
			return IngestResult{}, err
		}
	}

	res := IngestResult{Chunks: len(chunks)}
	if p.summarizer != nil {
		summary, err := p.summarizer.Summarize(text, p.summarySentences)
		if err != nil {
			log.Warn("summary failed", "error", err)
		}
		res.Summary = summary
	}
	log.Info("ingest complete", "chunks", res.Chunks, "elapsed", time.Since(start).String())
	return res, nil
}

// Answer retrieves the topK chunks nearest to question and asks the completer.
// An empty namespace still produces a completion over an empty context.
func (p *Pipeline) Answer(ctx context.Context, question, namespace string, topK int) (string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	vec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return "", err
	}
	matches, err := p.index.Query(ctx, namespace, vec, topK)
	if err != nil {
		return "", err
	}
	p.log.Debug("retrieved context", "namespace", namespace, "matches", len(matches))
	return p.completer.Complete(ctx, BuildPrompt(question, matches))
}

// BuildPrompt joins match texts in rank order into the answer prompt.
func BuildPrompt(question string, matches []domain.Match) string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return fmt.Sprintf(promptTemplate, strings.Join(texts, contextSeparator), question)
}

func (p *Pipeline) Namespaces(ctx context.Context) ([]string, error) {
	return p.index.ListNamespaces(ctx)
}

func (p *Pipeline) ClearAll(ctx context.Context) error {
	if err := p.index.ClearAll(ctx); err != nil {
		return err
	}
	p.log.Info("all namespaces cleared")
	return nil
}

// NamespaceFromFilename derives a namespace from a file's base name:
// extension dropped, lower-cased, spaces replaced with underscores.
func NamespaceFromFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(strings.ToLower(base), " ", "_")
}
