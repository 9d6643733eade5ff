package knowledge

import (
	"context"
	"sort"
)

// Reranker 重排序接口
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []RerankDocument) ([]RerankResult, error)
	ModelID() string
	Ready() bool
}

// RerankDocument 待重排序的文档
type RerankDocument struct {
	ID      uint    `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"` // 融合阶段的原始分数
}

// RerankResult 重排序结果
type RerankResult struct {
	Document RerankDocument `json:"document"`
	Score    float64        `json:"score"`
	Rank     int            `json:"rank"`
}

// NoopReranker 默认占位实现，保持输入顺序
type NoopReranker struct{}

func (n *NoopReranker) Rerank(ctx context.Context, query string, documents []RerankDocument) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{
			Document: doc,
			Score:    doc.Score,
			Rank:     i + 1,
		}
	}
	return results, nil
}

func (n *NoopReranker) ModelID() string { return "" }

func (n *NoopReranker) Ready() bool { return false }

// sortRerankResults 按分数降序稳定排序，分数相同时保持输入顺序
func sortRerankResults(results []RerankResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	for i := range results {
		results[i].Rank = i + 1
	}
}
