package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"testing"

	"docqa/internal/domain"
	"docqa/internal/errs"
	"docqa/internal/logger"
	"docqa/internal/vectorstore"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestProvider(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *Provider {
	t.Helper()
	return &Provider{
		log:     logger.NewNop(),
		baseURL: "http://qdrant.local",
		apiKey:  "qd-test",
		http:    &http.Client{Transport: roundTripFunc(roundTrip)},
	}
}

func newTestIndex(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *Index {
	t.Helper()
	p := newTestProvider(t, roundTrip)
	return &Index{log: p.log, p: p, collection: "rag"}
}

func response(t *testing.T, status int, result any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"result": result, "status": "ok", "time": 0.001})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

func decode(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestEnsureIndexCreatesCollectionAndPayloadIndex(t *testing.T) {
	var calls []string
	p := newTestProvider(t, func(r *http.Request) (*http.Response, error) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Header.Get("api-key") != "qd-test" {
			t.Errorf("api-key header: got=%q", r.Header.Get("api-key"))
		}
		switch {
		case r.Method == http.MethodGet:
			return response(t, http.StatusNotFound, nil), nil
		case r.URL.Path == "/collections/rag":
			body := decode(t, r)
			vectors := body["vectors"].(map[string]any)
			if vectors["size"] != float64(1536) || vectors["distance"] != "Cosine" {
				t.Errorf("vectors config: got=%v", vectors)
			}
			return response(t, http.StatusOK, true), nil
		case r.URL.Path == "/collections/rag/index":
			body := decode(t, r)
			if body["field_name"] != "namespace" || body["field_schema"] != "keyword" {
				t.Errorf("payload index: got=%v", body)
			}
			return response(t, http.StatusOK, map[string]any{"status": "completed"}), nil
		}
		t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		return response(t, http.StatusBadRequest, nil), nil
	})

	if _, err := p.EnsureIndex(context.Background(), vectorstore.IndexSpec{Name: "rag", Dimension: 1536, Metric: "cosine"}); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	want := []string{"GET /collections/rag", "PUT /collections/rag", "PUT /collections/rag/index"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls: want=%v got=%v", want, calls)
	}
}

func TestEnsureIndexRecreatesOnSizeMismatch(t *testing.T) {
	var calls []string
	p := newTestProvider(t, func(r *http.Request) (*http.Response, error) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			return response(t, http.StatusOK, map[string]any{
				"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": 384, "distance": "Cosine"}}},
			}), nil
		case http.MethodDelete:
			return response(t, http.StatusNotFound, nil), nil
		default:
			return response(t, http.StatusOK, true), nil
		}
	})

	if _, err := p.EnsureIndex(context.Background(), vectorstore.IndexSpec{Name: "rag", Dimension: 1536, Metric: "dotproduct"}); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	want := []string{"GET /collections/rag", "DELETE /collections/rag", "PUT /collections/rag", "PUT /collections/rag/index"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls: want=%v got=%v", want, calls)
	}
}

func TestEnsureIndexKeepsMatchingCollection(t *testing.T) {
	calls := 0
	p := newTestProvider(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return response(t, http.StatusOK, map[string]any{
			"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": 3}}},
		}), nil
	})
	if _, err := p.EnsureIndex(context.Background(), vectorstore.IndexSpec{Name: "rag", Dimension: 3}); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/rag/points" || r.URL.RawQuery != "wait=true" {
			t.Fatalf("request: got=%s %s?%s", r.Method, r.URL.Path, r.URL.RawQuery)
		}
		captured = decode(t, r)
		return response(t, http.StatusOK, map[string]any{"status": "completed"}), nil
	})

	meta := map[string]any{"source": "report.pdf", "chunk_index": 0}
	err := idx.Upsert(context.Background(), "report", []domain.Record{{ID: "chunk-0", Vector: []float32{1, 2, 3}, Text: "hello", Metadata: meta}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	points := captured["points"].([]any)
	first := points[0].(map[string]any)
	if first["id"] != pointID("report", "chunk-0") {
		t.Fatalf("point id: got=%v", first["id"])
	}
	payload := first["payload"].(map[string]any)
	if payload["namespace"] != "report" || payload["text"] != "hello" || payload["record_id"] != "chunk-0" || payload["source"] != "report.pdf" {
		t.Fatalf("payload: got=%v", payload)
	}
	if _, mutated := meta["namespace"]; mutated {
		t.Fatalf("input metadata mutated")
	}
}

func TestPointIDIsStablePerNamespace(t *testing.T) {
	if pointID("a", "chunk-0") != pointID("a", "chunk-0") {
		t.Fatalf("point id must be deterministic")
	}
	if pointID("a", "chunk-0") == pointID("b", "chunk-0") {
		t.Fatalf("point id must differ across namespaces")
	}
}

func TestQueryFiltersNamespace(t *testing.T) {
	var captured map[string]any
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		captured = decode(t, r)
		return response(t, http.StatusOK, []map[string]any{
			{"id": "x", "score": 0.91, "payload": map[string]any{"text": "first", "record_id": "chunk-3"}},
			{"id": "y", "score": 0.42, "payload": map[string]any{"text": "second", "record_id": "chunk-1"}},
		}), nil
	})

	matches, err := idx.Query(context.Background(), "report", []float32{0.1, 0.2, 0.3}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 || matches[0].Text != "first" || matches[0].ID != "chunk-3" || matches[1].Score != 0.42 {
		t.Fatalf("matches: got=%+v", matches)
	}
	if captured["limit"] != float64(5) || captured["with_payload"] != true {
		t.Fatalf("search body: got=%v", captured)
	}
	must := captured["filter"].(map[string]any)["must"].([]any)
	cond := must[0].(map[string]any)
	if cond["key"] != "namespace" || cond["match"].(map[string]any)["value"] != "report" {
		t.Fatalf("filter: got=%v", cond)
	}
}

// fakeFacetServer holds point counts per namespace and answers facet
// requests the way Qdrant does, returning 10 values when no limit is sent.
type fakeFacetServer struct {
	t      *testing.T
	counts map[string]int
}

func (f *fakeFacetServer) roundTrip(r *http.Request) (*http.Response, error) {
	t := f.t
	body := decode(t, r)
	switch r.URL.Path {
	case "/collections/rag/facet":
		if body["key"] != "namespace" {
			t.Errorf("facet key: got=%v", body["key"])
		}
		limit := 10
		if l, ok := body["limit"].(float64); ok {
			limit = int(l)
		}
		names := make([]string, 0, len(f.counts))
		for name := range f.counts {
			names = append(names, name)
		}
		sort.Strings(names)
		hits := []map[string]any{}
		for _, name := range names {
			if len(hits) == limit {
				break
			}
			hits = append(hits, map[string]any{"value": name, "count": f.counts[name]})
		}
		return response(t, http.StatusOK, map[string]any{"hits": hits}), nil
	case "/collections/rag/points/delete":
		filter := body["filter"].(map[string]any)
		if mustNot, ok := filter["must_not"].([]any); ok {
			cond := mustNot[0].(map[string]any)["is_empty"].(map[string]any)
			if cond["key"] != "namespace" {
				t.Errorf("clear filter: got=%v", filter)
			}
			f.counts = map[string]int{}
		} else {
			cond := filter["must"].([]any)[0].(map[string]any)
			delete(f.counts, cond["match"].(map[string]any)["value"].(string))
		}
		return response(t, http.StatusOK, map[string]any{"status": "completed"}), nil
	}
	t.Errorf("unexpected %s", r.URL.Path)
	return response(t, http.StatusBadRequest, nil), nil
}

func TestStatsAndClearAll(t *testing.T) {
	f := &fakeFacetServer{t: t, counts: map[string]int{"zeta": 4, "alpha": 2}}
	idx := newTestIndex(t, f.roundTrip)

	ctx := context.Background()
	stats, err := idx.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if !reflect.DeepEqual(stats, map[string]int{"zeta": 4, "alpha": 2}) {
		t.Fatalf("stats: got=%v", stats)
	}
	names, _ := idx.ListNamespaces(ctx)
	if !reflect.DeepEqual(names, []string{"alpha", "zeta"}) {
		t.Fatalf("namespaces: got=%v", names)
	}
	if err := idx.DeleteNamespace(ctx, "zeta"); err != nil {
		t.Fatalf("DeleteNamespace: %v", err)
	}
	if !reflect.DeepEqual(f.counts, map[string]int{"alpha": 2}) {
		t.Fatalf("after delete: got=%v", f.counts)
	}
}

func TestManyNamespacesListedAndCleared(t *testing.T) {
	f := &fakeFacetServer{t: t, counts: map[string]int{}}
	for i := 0; i < 12; i++ {
		f.counts[fmt.Sprintf("doc_%02d", i)] = 3
	}
	idx := newTestIndex(t, f.roundTrip)

	ctx := context.Background()
	names, err := idx.ListNamespaces(ctx)
	if err != nil {
		t.Fatalf("ListNamespaces: %v", err)
	}
	if len(names) != 12 || names[11] != "doc_11" {
		t.Fatalf("namespaces: got=%v", names)
	}
	if err := idx.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if len(f.counts) != 0 {
		t.Fatalf("namespaces left after ClearAll: %v", f.counts)
	}
	names, _ = idx.ListNamespaces(ctx)
	if !reflect.DeepEqual(names, []string{vectorstore.DefaultNamespace}) {
		t.Fatalf("after clear: got=%v", names)
	}
}

func TestListNamespacesEmptyReturnsDefault(t *testing.T) {
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		return response(t, http.StatusOK, map[string]any{"hits": []any{}}), nil
	})
	names, err := idx.ListNamespaces(context.Background())
	if err != nil {
		t.Fatalf("ListNamespaces: %v", err)
	}
	if !reflect.DeepEqual(names, []string{vectorstore.DefaultNamespace}) {
		t.Fatalf("namespaces: got=%v", names)
	}
}

func TestServerErrorIsStoreError(t *testing.T) {
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		return response(t, http.StatusInternalServerError, nil), nil
	})
	_, err := idx.Query(context.Background(), "report", []float32{1}, 5)
	if !errs.Is(err, errs.Store) {
		t.Fatalf("want store error, got %v", err)
	}
	if !hasStatus(err, http.StatusInternalServerError) {
		t.Fatalf("want 500 in chain, got %v", err)
	}
}

func TestDistanceFor(t *testing.T) {
	cases := map[string]string{"cosine": "Cosine", "euclidean": "Euclid", "dotproduct": "Dot", "": "Cosine"}
	for metric, want := range cases {
		if got := distanceFor(metric); got != want {
			t.Fatalf("distanceFor(%q): want=%q got=%q", metric, want, got)
		}
	}
}
