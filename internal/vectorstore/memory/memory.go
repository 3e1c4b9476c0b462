package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/errs"
	"docqa/internal/vectorstore"
)

// Provider is a process-local vector store using brute-force similarity.
// It keeps one index per name for the lifetime of the value.
type Provider struct {
	mu      sync.Mutex
	indexes map[string]*Index
}

func NewProvider() *Provider {
	return &Provider{indexes: make(map[string]*Index)}
}

func (p *Provider) EnsureIndex(_ context.Context, spec vectorstore.IndexSpec) (vectorstore.Index, error) {
	if spec.Dimension <= 0 {
		return nil, errs.Errorf(errs.Store, "memory.EnsureIndex", "invalid dimension %d", spec.Dimension)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx, ok := p.indexes[spec.Name]; ok && idx.dimension == spec.Dimension && idx.metric == spec.Metric {
		return idx, nil
	}
	idx := &Index{
		dimension:  spec.Dimension,
		metric:     spec.Metric,
		namespaces: make(map[string]*namespace),
	}
	p.indexes[spec.Name] = idx
	return idx, nil
}

type namespace struct {
	order   []string
	records map[string]domain.Record
}

// Index holds records per namespace. Upserting an existing id replaces it in place.
type Index struct {
	mu         sync.RWMutex
	dimension  int
	metric     string
	namespaces map[string]*namespace
}

func (s *Index) Upsert(_ context.Context, ns string, records []domain.Record) error {
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return errs.Errorf(errs.Store, "memory.Upsert", "record %q dimension mismatch: expected=%d got=%d", r.ID, s.dimension, len(r.Vector))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.namespaces[ns]
	if !ok {
		n = &namespace{records: make(map[string]domain.Record)}
		s.namespaces[ns] = n
	}
	for _, r := range records {
		if _, exists := n.records[r.ID]; !exists {
			n.order = append(n.order, r.ID)
		}
		n.records[r.ID] = r
	}
	return nil
}

func (s *Index) Query(_ context.Context, ns string, vector []float32, topK int) ([]domain.Match, error) {
	if len(vector) != s.dimension {
		return nil, errs.Errorf(errs.Store, "memory.Query", "query dimension mismatch: expected=%d got=%d", s.dimension, len(vector))
	}
	if topK <= 0 {
		topK = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.namespaces[ns]
	if !ok {
		return []domain.Match{}, nil
	}
	matches := make([]domain.Match, 0, len(n.order))
	for _, id := range n.order {
		r := n.records[id]
		matches = append(matches, domain.Match{ID: r.ID, Text: r.Text, Score: s.score(r.Vector, vector)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Index) Stats(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.namespaces))
	for name, n := range s.namespaces {
		out[name] = len(n.order)
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

func (s *Index) DeleteNamespace(_ context.Context, ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, ns)
	return nil
}

func (s *Index) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.namespaces {
		delete(s.namespaces, name)
	}
	return nil
}

// score returns a similarity where higher is better, for every metric.
func (s *Index) score(a, b []float32) float64 {
	switch s.metric {
	case vectorstore.MetricDotProduct:
		return dot(a, b)
	case vectorstore.MetricEuclidean:
		sum := 0.0
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return 1.0 / (1.0 + math.Sqrt(sum))
	default:
		na, nb := math.Sqrt(dot(a, a)), math.Sqrt(dot(b, b))
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
