package pinecone

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/errs"
	"docqa/internal/logger"
	"docqa/internal/vectorstore"
)

// Provider ensures serverless Pinecone indexes.
type Provider struct {
	log *logger.Logger
	pc  *Client
}

func NewProvider(log *logger.Logger, pc *Client) *Provider {
	return &Provider{log: log.With("service", "PineconeProvider"), pc: pc}
}

func (p *Provider) EnsureIndex(ctx context.Context, spec vectorstore.IndexSpec) (vectorstore.Index, error) {
	const op = "pinecone.EnsureIndex"

	desc, err := p.pc.DescribeIndex(ctx, spec.Name)
	switch {
	case hasStatus(err, http.StatusNotFound):
		p.log.Info("creating index", "index", spec.Name, "dimension", spec.Dimension, "metric", spec.Metric)
		if err := p.pc.CreateIndex(ctx, spec.Name, spec.Dimension, spec.Metric); err != nil {
			return nil, errs.E(errs.Store, op, err)
		}
	case err != nil:
		return nil, errs.E(errs.Store, op, err)
	case desc.Dimension != spec.Dimension:
		p.log.Warn("index dimension mismatch, recreating; all namespaces will be lost",
			"index", spec.Name,
			"existing_dimension", desc.Dimension,
			"dimension", spec.Dimension,
		)
		if err := p.pc.DeleteIndex(ctx, spec.Name); err != nil {
			return nil, errs.E(errs.Store, op, err)
		}
		if err := p.pc.WaitGone(ctx, spec.Name); err != nil {
			return nil, errs.E(errs.Store, op, err)
		}
		if err := p.pc.CreateIndex(ctx, spec.Name, spec.Dimension, spec.Metric); err != nil {
			return nil, errs.E(errs.Store, op, err)
		}
	}

	ready, err := p.pc.WaitReady(ctx, spec.Name)
	if err != nil {
		return nil, errs.E(errs.Store, op, err)
	}
	p.log.Info("index ready", "index", spec.Name, "host", ready.Host)
	return &Index{
		log:  p.log.With("index", spec.Name),
		pc:   p.pc,
		host: ready.Host,
	}, nil
}

// Index is a handle bound to one index's data-plane host.
type Index struct {
	log  *logger.Logger
	pc   *Client
	host string
}

// Pinecone rejects upsert requests over 2 MiB or 1000 vectors. The byte
// budget leaves room for the request envelope.
const (
	maxUpsertBytes   = 2<<20 - 16<<10
	maxUpsertVectors = 1000
)

// Upsert writes records in as many requests as the upsert limits require.
func (s *Index) Upsert(ctx context.Context, namespace string, records []domain.Record) error {
	const op = "pinecone.Upsert"
	batches, err := upsertBatches(records, maxUpsertBytes, maxUpsertVectors)
	if err != nil {
		return errs.E(errs.Store, op, err)
	}
	for _, vectors := range batches {
		resp, err := s.pc.UpsertVectors(ctx, s.host, UpsertRequest{Namespace: namespace, Vectors: vectors})
		if err != nil {
			return errs.E(errs.Store, op, err)
		}
		s.log.Debug("upserted", "namespace", namespace, "count", resp.UpsertedCount)
	}
	return nil
}

// upsertBatches groups records so each batch encodes to at most maxBytes of
// vectors and holds at most maxVectors. A single oversized record gets its
// own batch and is left for the server to reject.
func upsertBatches(records []domain.Record, maxBytes, maxVectors int) ([][]Vector, error) {
	var (
		batches [][]Vector
		cur     []Vector
		size    int
	)
	for _, r := range records {
		md := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			md[k] = v
		}
		md["text"] = r.Text
		v := Vector{ID: r.ID, Values: r.Vector, Metadata: md}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode vector %q: %w", r.ID, err)
		}
		n := len(raw) + 1
		if len(cur) > 0 && (size+n > maxBytes || len(cur) == maxVectors) {
			batches = append(batches, cur)
			cur, size = nil, 0
		}
		cur = append(cur, v)
		size += n
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches, nil
}

func (s *Index) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	resp, err := s.pc.Query(ctx, s.host, QueryRequest{
		Namespace:       namespace,
		Vector:          vector,
		TopK:            topK,
		IncludeValues:   false,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, errs.E(errs.Store, "pinecone.Query", err)
	}
	out := make([]domain.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		text, _ := m.Metadata["text"].(string)
		out = append(out, domain.Match{ID: m.ID, Text: text, Score: m.Score})
	}
	return out, nil
}

func (s *Index) Stats(ctx context.Context) (map[string]int, error) {
	resp, err := s.pc.DescribeIndexStats(ctx, s.host)
	if err != nil {
		return nil, errs.E(errs.Store, "pinecone.Stats", err)
	}
	out := make(map[string]int, len(resp.Namespaces))
	for name, summary := range resp.Namespaces {
		if strings.TrimSpace(name) == "" {
			continue
		}
		out[name] = summary.VectorCount
	}
	return out, nil
}

func (s *Index) ListNamespaces(ctx context.Context) ([]string, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return vectorstore.NamespacesFromStats(stats), nil
}

func (s *Index) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := s.pc.DeleteNamespace(ctx, s.host, namespace); err != nil {
		return errs.E(errs.Store, "pinecone.DeleteNamespace", err)
	}
	s.log.Info("namespace deleted", "namespace", namespace)
	return nil
}

func (s *Index) ClearAll(ctx context.Context) error {
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.DeleteNamespace(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
