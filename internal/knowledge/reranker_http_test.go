package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPReranker_RanksByRelevanceScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rerank-v3.5", req.Model)
		assert.Len(t, req.Documents, 3)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"index": 2, "relevance_score": 0.95},
				{"index": 0, "relevance_score": 0.40},
				{"index": 1, "relevance_score": 0.10},
			},
		})
	}))
	defer server.Close()

	reranker := NewHTTPReranker(server.URL, "test-key", "rerank-v3.5", 5*time.Second)

	docs := []RerankDocument{
		{ID: 10, Content: "first"},
		{ID: 20, Content: "second"},
		{ID: 30, Content: "third"},
	}
	results, err := reranker.Rerank(context.Background(), "query", docs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, uint(30), results[0].Document.ID)
	assert.InDelta(t, 0.95, results[0].Score, 1e-9)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, uint(10), results[1].Document.ID)
	assert.Equal(t, uint(20), results[2].Document.ID)
}

func TestHTTPReranker_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	reranker := NewHTTPReranker(server.URL, "test-key", "", time.Second)

	_, err := reranker.Rerank(context.Background(), "query", []RerankDocument{{ID: 1, Content: "a"}})
	require.Error(t, err)
}

func TestHTTPReranker_EmptyKeyFallsBackToNoop(t *testing.T) {
	reranker := NewHTTPReranker("", "  ", "", 0)

	_, ok := reranker.(*NoopReranker)
	assert.True(t, ok)
	assert.False(t, reranker.Ready())
}

func TestNoopReranker_PreservesInputOrder(t *testing.T) {
	noop := &NoopReranker{}
	docs := []RerankDocument{
		{ID: 3, Content: "c", Score: 0.2},
		{ID: 1, Content: "a", Score: 0.9},
	}

	results, err := noop.Rerank(context.Background(), "q", docs)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, uint(3), results[0].Document.ID)
	assert.Equal(t, uint(1), results[1].Document.ID)
}
