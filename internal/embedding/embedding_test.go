package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/abhisek/dalil/internal/store"
	"github.com/abhisek/dalil/internal/vecindex"
)

type countingEmbedder struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[text]++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) Model() string { return "counting" }

type memRepo struct {
	entries map[string]store.EmbeddingCacheEntry
}

func (m *memRepo) Get(_ context.Context, hash string) (*store.EmbeddingCacheEntry, error) {
	e, ok := m.entries[hash]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memRepo) Put(_ context.Context, e store.EmbeddingCacheEntry) error {
	m.entries[e.ContentHash] = e
	return nil
}

func (m *memRepo) Count(context.Context) (int, error) { return len(m.entries), nil }

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "the battle of hattin")
	b, _ := e.Embed(ctx, "the battle of hattin")
	if vecindex.Cosine(a, b) < 0.9999 {
		t.Error("identical text should embed identically")
	}
	if len(a) != 64 {
		t.Errorf("dim = %d, want 64", len(a))
	}
	if n := vecindex.Norm(a); n < 0.999 || n > 1.001 {
		t.Errorf("norm = %f, want 1", n)
	}
}

func TestHashEmbedder_SimilarTextsCloser(t *testing.T) {
	e := NewHashEmbedder(512)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "Saladin won the battle of Hattin")
	near, _ := e.Embed(ctx, "the battle of Hattin was won by Saladin in 1187")
	far, _ := e.Embed(ctx, "papyrus was made from reeds along the Nile")

	if vecindex.Cosine(q, near) <= vecindex.Cosine(q, far) {
		t.Error("overlapping text should score higher than unrelated text")
	}
}

func TestCachedEmbedder_MemoizesByText(t *testing.T) {
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, 10, nil, nil)
	ctx := context.Background()

	for range 3 {
		if _, err := e.Embed(ctx, "same"); err != nil {
			t.Fatalf("Embed: %v", err)
		}
	}
	if inner.calls["same"] != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls["same"])
	}
}

func TestCachedEmbedder_PersistentCacheSurvivesNewProcess(t *testing.T) {
	repo := &memRepo{entries: map[string]store.EmbeddingCacheEntry{}}
	ctx := context.Background()

	first := &countingEmbedder{}
	if _, err := NewCachedEmbedder(first, 10, repo, nil).Embed(ctx, "text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	second := &countingEmbedder{}
	v, err := NewCachedEmbedder(second, 10, repo, nil).Embed(ctx, "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if second.calls["text"] != 0 {
		t.Error("second embedder should be served from the persistent cache")
	}
	if v[0] != 4 {
		t.Errorf("v = %v, want [4 1]", v)
	}
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	e := NewCachedEmbedder(inner, 10, nil, nil)
	ctx := context.Background()

	if _, err := e.Embed(ctx, "x"); err == nil {
		t.Fatal("expected error")
	}
	inner.err = nil
	if _, err := e.Embed(ctx, "x"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.calls["x"] != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls["x"])
	}
}

func TestCachedEmbedder_CapacityBound(t *testing.T) {
	e := NewCachedEmbedder(&countingEmbedder{}, 2, nil, nil)
	ctx := context.Background()
	for _, s := range []string{"a", "b", "c"} {
		_, _ = e.Embed(ctx, s)
	}
	if e.Len() != 2 {
		t.Errorf("Len = %d, want 2", e.Len())
	}
}

func TestContentHash_ModelScoped(t *testing.T) {
	if ContentHash("m1", "x") == ContentHash("m2", "x") {
		t.Error("hash should differ across models")
	}
}

func TestOllamaEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req ollamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.1, 0.2, 0.3}}})
	}))
	t.Cleanup(server.Close)

	e := NewOllamaEmbedder(server.URL+"/", "nomic-embed-text")
	v, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 3 {
		t.Errorf("len = %d, want 3", len(v))
	}
}

func TestOllamaEmbedder_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	if _, err := NewOllamaEmbedder(server.URL, "x").Embed(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.5, 0.5}},
			},
		})
	}))
	t.Cleanup(server.Close)

	e, err := NewOpenAIEmbedder("k", "", server.URL+"/v1")
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder: %v", err)
	}
	v, err := e.Embed(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 2 || e.Model() != defaultOpenAIEmbeddingModel {
		t.Errorf("v = %v, model = %q", v, e.Model())
	}
}
