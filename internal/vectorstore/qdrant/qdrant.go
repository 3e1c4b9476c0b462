package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/errs"
	"docqa/internal/logger"
	"docqa/internal/vectorstore"
)

const (
	payloadNamespaceKey = "namespace"
	payloadIDKey        = "record_id"
	payloadTextKey      = "text"
	maxErrorBodyBytes   = 2048
	// facetLimit caps the distinct namespaces Stats reports. Qdrant
	// returns only 10 facet values unless a limit is sent.
	facetLimit = 10000
)

var pointIDNamespaceUUID = uuid.MustParse("6b0c63a4-6f0e-4d0e-9a55-3f1d2b7c9e41")

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Provider maps indexes onto Qdrant collections and namespaces onto a keyword
// payload field.
type Provider struct {
	log     *logger.Logger
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewProvider(log *logger.Logger, cfg Config) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		base = "http://localhost:6333"
	}
	return &Provider{
		log:     log.With("service", "QdrantProvider"),
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// StatusError is a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("qdrant %s http %d: %s", e.Op, e.StatusCode, e.Body)
}

func hasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func distanceFor(metric string) string {
	switch metric {
	case vectorstore.MetricEuclidean:
		return "Euclid"
	case vectorstore.MetricDotProduct:
		return "Dot"
	default:
		return "Cosine"
	}
}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

func (p *Provider) EnsureIndex(ctx context.Context, spec vectorstore.IndexSpec) (vectorstore.Index, error) {
	const op = "qdrant.EnsureIndex"
	path := "/collections/" + spec.Name

	var info collectionInfo
	err := p.doJSON(ctx, "get_collection", http.MethodGet, path, nil, &info)
	switch {
	case hasStatus(err, http.StatusNotFound):
		if err := p.createCollection(ctx, spec); err != nil {
			return nil, errs.E(errs.Store, op, err)
		}
	case err != nil:
		return nil, errs.E(errs.Store, op, err)
	case info.Config.Params.Vectors.Size != spec.Dimension:
		p.log.Warn("collection dimension mismatch, recreating; all namespaces will be lost",
			"collection", spec.Name,
			"existing_dimension", info.Config.Params.Vectors.Size,
			"dimension", spec.Dimension,
		)
		if err := p.doJSON(ctx, "delete_collection", http.MethodDelete, path, nil, nil); err != nil && !hasStatus(err, http.StatusNotFound) {
			return nil, errs.E(errs.Store, op, err)
		}
		if err := p.createCollection(ctx, spec); err != nil {
			return nil, errs.E(errs.Store, op, err)
		}
	}

	return &Index{
		log:        p.log.With("collection", spec.Name),
		p:          p,
		collection: spec.Name,
	}, nil
}

func (p *Provider) createCollection(ctx context.Context, spec vectorstore.IndexSpec) error {
	p.log.Info("creating collection", "collection", spec.Name, "dimension", spec.Dimension, "metric", spec.Metric)
	body := map[string]any{
		"vectors": map[string]any{
			"size":     spec.Dimension,
			"distance": distanceFor(spec.Metric),
		},
	}
	path := "/collections/" + spec.Name
	if err := p.doJSON(ctx, "create_collection", http.MethodPut, path, body, nil); err != nil {
		return err
	}
	index := map[string]any{"field_name": payloadNamespaceKey, "field_schema": "keyword"}
	return p.doJSON(ctx, "create_payload_index", http.MethodPut, path+"/index?wait=true", index, nil)
}

// Index is one collection.
type Index struct {
	log        *logger.Logger
	p          *Provider
	collection string
}

func (s *Index) path(suffix string) string {
	return "/collections/" + s.collection + suffix
}

func pointID(namespace, id string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(namespace+"|"+id)).String()
}

func namespaceFilter(namespace string) map[string]any {
	return map[string]any{
		"must": []any{
			map[string]any{"key": payloadNamespaceKey, "match": map[string]any{"value": namespace}},
		},
	}
}

func (s *Index) Upsert(ctx context.Context, namespace string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(records))
	for _, r := range records {
		payload := make(map[string]any, len(r.Metadata)+3)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[payloadTextKey] = r.Text
		payload[payloadNamespaceKey] = namespace
		payload[payloadIDKey] = r.ID
		points = append(points, map[string]any{
			"id":      pointID(namespace, r.ID),
			"vector":  r.Vector,
			"payload": payload,
		})
	}
	if err := s.p.doJSON(ctx, "upsert", http.MethodPut, s.path("/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
		return errs.E(errs.Store, "qdrant.Upsert", err)
	}
	s.log.Debug("upserted", "namespace", namespace, "count", len(points))
	return nil
}

func (s *Index) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter":       namespaceFilter(namespace),
	}
	var result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	}
	if err := s.p.doJSON(ctx, "search", http.MethodPost, s.path("/points/search"), req, &result); err != nil {
		return nil, errs.E(errs.Store, "qdrant.Query", err)
	}
	out := make([]domain.Match, 0, len(result))
	for _, r := range result {
		m := domain.Match{Score: r.Score}
		m.ID, _ = r.Payload[payloadIDKey].(string)
		m.Text, _ = r.Payload[payloadTextKey].(string)
		out = append(out, m)
	}
	return out, nil
}

func (s *Index) Stats(ctx context.Context) (map[string]int, error) {
	req := map[string]any{"key": payloadNamespaceKey, "exact": true, "limit": facetLimit}
	var result struct {
		Hits []struct {
			Value any `json:"value"`
			Count int `json:"count"`
		} `json:"hits"`
	}
	if err := s.p.doJSON(ctx, "facet", http.MethodPost, s.path("/facet"), req, &result); err != nil {
		return nil, errs.E(errs.Store, "qdrant.Stats", err)
	}
	out := make(map[string]int, len(result.Hits))
	for _, h := range result.Hits {
		name, ok := h.Value.(string)
		if !ok || name == "" {
			continue
		}
		out[name] = h.Count
	}
	if len(result.Hits) >= facetLimit {
		s.log.Warn("namespace facet truncated", "limit", facetLimit)
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
	req := map[string]any{"filter": namespaceFilter(namespace)}
	if err := s.p.doJSON(ctx, "delete_points", http.MethodPost, s.path("/points/delete?wait=true"), req, nil); err != nil {
		return errs.E(errs.Store, "qdrant.DeleteNamespace", err)
	}
	s.log.Info("namespace deleted", "namespace", namespace)
	return nil
}

// ClearAll deletes every point carrying a namespace in one request.
func (s *Index) ClearAll(ctx context.Context) error {
	req := map[string]any{"filter": map[string]any{
		"must_not": []any{
			map[string]any{"is_empty": map[string]any{"key": payloadNamespaceKey}},
		},
	}}
	if err := s.p.doJSON(ctx, "delete_points", http.MethodPost, s.path("/points/delete?wait=true"), req, nil); err != nil {
		return errs.E(errs.Store, "qdrant.ClearAll", err)
	}
	s.log.Info("all namespaces deleted")
	return nil
}

type envelope struct {
	Result json.RawMessage `json:"result"`
}

func (p *Provider) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("qdrant %s encode: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("api-key", p.apiKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("qdrant %s read: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > maxErrorBodyBytes {
			raw = append(raw[:maxErrorBodyBytes], "..."...)
		}
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("qdrant %s decode envelope: %w", op, err)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("qdrant %s decode result: %w", op, err)
	}
	return nil
}
