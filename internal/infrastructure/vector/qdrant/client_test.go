package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
)

func testContent() domain.IngestedContent {
	return domain.IngestedContent{
		ContentID:  "content-1",
		Title:      "Goroutine leaks",
		URL:        "https://example.com/post",
		ProviderID: "websearch",
		Text:       "full text",
	}
}

func TestIndexContentEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/kgw_web-knowledge":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/kgw_web-knowledge/points":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "kgw_")
	chunks := []string{"a", "b"}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.IndexContent(context.Background(), "web-knowledge", testContent(), chunks, vectors); err != nil {
		t.Fatalf("first IndexContent() error = %v", err)
	}
	if err := client.IndexContent(context.Background(), "web-knowledge", testContent(), chunks, vectors); err != nil {
		t.Fatalf("second IndexContent() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestIndexContentWritesNamedVectors(t *testing.T) {
	var upsertBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/kgw_docs":
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/kgw_docs/points":
			if err := json.NewDecoder(r.Body).Decode(&upsertBody); err != nil {
				t.Fatalf("decode upsert body: %v", err)
			}
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "kgw_")
	err := client.IndexContent(context.Background(), "docs", testContent(), []string{"chunk text"}, [][]float32{{0.1, 0.2}})
	if err != nil {
		t.Fatalf("IndexContent() error = %v", err)
	}

	points, _ := upsertBody["points"].([]any)
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %v", upsertBody)
	}
	point, _ := points[0].(map[string]any)
	vector, _ := point["vector"].(map[string]any)
	if _, ok := vector[denseVectorName]; !ok {
		t.Fatalf("dense vector missing: %v", vector)
	}
	if _, ok := vector[sparseVectorName]; !ok {
		t.Fatalf("sparse vector missing: %v", vector)
	}
	payload, _ := point["payload"].(map[string]any)
	if payload["content_id"] != "content-1" || payload["text"] != "chunk text" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestSearchWorkspaceParsesPoints(t *testing.T) {
	var queryBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/kgw_go-docs/points/query" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&queryBody); err != nil {
			t.Fatalf("decode query body: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":{"points":[
			{"score":0.91,"payload":{"content_id":"c-1","title":"Leaks","text":"snippet one","technology":"go"}},
			{"score":0.44,"payload":{"content_id":"c-2","title":"Pools","text":"snippet two"}}
		]}}`))
	}))
	defer server.Close()

	client := New(server.URL, "kgw_")
	results, err := client.SearchWorkspace(context.Background(), "go-docs", []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("SearchWorkspace() error = %v", err)
	}

	if using, _ := queryBody["using"].(string); using != denseVectorName {
		t.Fatalf("expected dense vector query, got %q", using)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0]
	if first.ContentID != "c-1" || first.Workspace != "go-docs" || first.Score != 0.91 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.Metadata["technology"] != "go" {
		t.Fatalf("technology payload not mapped: %+v", first)
	}
	if results[1].Metadata != nil {
		t.Fatalf("absent technology must not allocate metadata: %+v", results[1])
	}
}

func TestSearchLexicalUsesSparseVector(t *testing.T) {
	var queryBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&queryBody)
		_, _ = w.Write([]byte(`{"result":{"points":[]}}`))
	}))
	defer server.Close()

	client := New(server.URL, "kgw_")
	results, err := client.SearchLexical(context.Background(), "go-docs", "goroutine leak", 5)
	if err != nil {
		t.Fatalf("SearchLexical() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}

	if using, _ := queryBody["using"].(string); using != sparseVectorName {
		t.Fatalf("expected sparse vector query, got %q", using)
	}
	query, _ := queryBody["query"].(map[string]any)
	indices, _ := query["indices"].([]any)
	if len(indices) == 0 {
		t.Fatalf("expected sparse indices in query: %v", queryBody)
	}
}

func TestSearchWorkspaceMissingCollectionIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "kgw_")
	results, err := client.SearchWorkspace(context.Background(), "brand-new", []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("missing collection must read as empty, got %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("expected well-formed empty result, got %v", results)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/kgw_docs" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "kgw_")
	err := client.IndexContent(context.Background(), "docs", testContent(), []string{"a"}, [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got == "" || !strings.Contains(got, "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
