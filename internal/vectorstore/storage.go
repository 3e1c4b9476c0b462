package vectorstore

import (
	"context"
	"sort"

	"docqa/internal/domain"
)

// DefaultNamespace is reported when a store holds no namespaces, so callers
// always have at least one selectable option.
const DefaultNamespace = "default"

const (
	MetricCosine     = "cosine"
	MetricEuclidean  = "euclidean"
	MetricDotProduct = "dotproduct"
)

// IndexSpec describes the index a Provider must make available.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    string
}

// Provider manages index lifecycle.
//
// EnsureIndex creates the index when absent and deletes and recreates it when
// it exists with a different dimension, which drops every namespace. The
// check-then-act sequence is not atomic across processes.
type Provider interface {
	EnsureIndex(ctx context.Context, spec IndexSpec) (Index, error)
}

// Index is a handle on one ensured index. Every data operation is scoped to a
// single namespace except Stats, ListNamespaces and ClearAll.
type Index interface {
	Upsert(ctx context.Context, namespace string, records []domain.Record) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error)
	Stats(ctx context.Context) (map[string]int, error)
	ListNamespaces(ctx context.Context) ([]string, error)
	DeleteNamespace(ctx context.Context, namespace string) error
	// ClearAll empties namespaces one at a time; a failure part way leaves the
	// remaining namespaces intact.
	ClearAll(ctx context.Context) error
}

// NamespacesFromStats returns the sorted names of namespaces holding records,
// or DefaultNamespace alone when there are none.
func NamespacesFromStats(stats map[string]int) []string {
	names := make([]string, 0, len(stats))
	for ns, count := range stats {
		if count > 0 {
			names = append(names, ns)
		}
	}
	if len(names) == 0 {
		return []string{DefaultNamespace}
	}
	sort.Strings(names)
	return names
}
