package memory

import (
	"context"
	"reflect"
	"testing"

	"docqa/internal/domain"
	"docqa/internal/errs"
	"docqa/internal/vectorstore"
)

func ensure(t *testing.T, p *Provider, dim int) vectorstore.Index {
	t.Helper()
	idx, err := p.EnsureIndex(context.Background(), vectorstore.IndexSpec{Name: "rag", Dimension: dim, Metric: vectorstore.MetricCosine})
	if err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	return idx
}

func TestQueryReturnsFewerThanTopK(t *testing.T) {
	ctx := context.Background()
	idx := ensure(t, NewProvider(), 2)
	err := idx.Upsert(ctx, "report", []domain.Record{
		{ID: "chunk-0", Vector: []float32{1, 0}, Text: "east"},
		{ID: "chunk-1", Vector: []float32{0, 1}, Text: "north"},
		{ID: "chunk-2", Vector: []float32{1, 1}, Text: "north-east"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := idx.Query(ctx, "report", []float32{1, 0.1}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("matches: want=3 got=%d", len(matches))
	}
	if got := []string{matches[0].Text, matches[1].Text, matches[2].Text}; !reflect.DeepEqual(got, []string{"east", "north-east", "north"}) {
		t.Fatalf("order: got=%v", got)
	}
}

func TestQueryScopedToNamespace(t *testing.T) {
	ctx := context.Background()
	idx := ensure(t, NewProvider(), 2)
	_ = idx.Upsert(ctx, "a", []domain.Record{{ID: "chunk-0", Vector: []float32{1, 0}, Text: "in a"}})
	_ = idx.Upsert(ctx, "b", []domain.Record{{ID: "chunk-0", Vector: []float32{1, 0}, Text: "in b"}})

	matches, err := idx.Query(ctx, "b", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].Text != "in b" {
		t.Fatalf("matches: got=%+v", matches)
	}

	empty, err := idx.Query(ctx, "missing", []float32{1, 0}, 5)
	if err != nil || len(empty) != 0 {
		t.Fatalf("missing namespace: matches=%v err=%v", empty, err)
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	idx := ensure(t, NewProvider(), 2)
	_ = idx.Upsert(ctx, "a", []domain.Record{{ID: "chunk-0", Vector: []float32{1, 0}, Text: "old"}})
	_ = idx.Upsert(ctx, "a", []domain.Record{{ID: "chunk-0", Vector: []float32{1, 0}, Text: "new"}})

	stats, _ := idx.Stats(ctx)
	if stats["a"] != 1 {
		t.Fatalf("count: want=1 got=%d", stats["a"])
	}
	matches, _ := idx.Query(ctx, "a", []float32{1, 0}, 1)
	if matches[0].Text != "new" {
		t.Fatalf("text: want=new got=%q", matches[0].Text)
	}
}

func TestClearAllLeavesDefaultNamespace(t *testing.T) {
	ctx := context.Background()
	idx := ensure(t, NewProvider(), 2)
	_ = idx.Upsert(ctx, "a", []domain.Record{{ID: "chunk-0", Vector: []float32{1, 0}, Text: "x"}})
	_ = idx.Upsert(ctx, "b", []domain.Record{{ID: "chunk-0", Vector: []float32{0, 1}, Text: "y"}})

	names, _ := idx.ListNamespaces(ctx)
	if !reflect.DeepEqual(names, []string{"a", "b"}) {
		t.Fatalf("before clear: got=%v", names)
	}
	if err := idx.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	names, _ = idx.ListNamespaces(ctx)
	if !reflect.DeepEqual(names, []string{vectorstore.DefaultNamespace}) {
		t.Fatalf("after clear: got=%v", names)
	}
}

func TestEnsureIndexRecreatesOnDimensionChange(t *testing.T) {
	ctx := context.Background()
	p := NewProvider()
	idx := ensure(t, p, 2)
	_ = idx.Upsert(ctx, "a", []domain.Record{{ID: "chunk-0", Vector: []float32{1, 0}, Text: "x"}})

	same := ensure(t, p, 2)
	if stats, _ := same.Stats(ctx); stats["a"] != 1 {
		t.Fatalf("same dimension must keep data, stats=%v", stats)
	}

	resized := ensure(t, p, 3)
	if stats, _ := resized.Stats(ctx); len(stats) != 0 {
		t.Fatalf("recreated index must be empty, stats=%v", stats)
	}
}

func TestDimensionMismatchIsStoreError(t *testing.T) {
	idx := ensure(t, NewProvider(), 2)
	err := idx.Upsert(context.Background(), "a", []domain.Record{{ID: "chunk-0", Vector: []float32{1, 0, 0}}})
	if !errs.Is(err, errs.Store) {
		t.Fatalf("want store error, got %v", err)
	}
}
