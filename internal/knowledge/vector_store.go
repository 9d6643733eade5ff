package knowledge

import "context"

// VectorSearchRequest 向量检索请求
type VectorSearchRequest struct {
	Embedding []float32
	Limit     int
}

// VectorStore 向量检索接口，返回按余弦相似度排序的章节
type VectorStore interface {
	// Search 以查询向量检索最相近的章节
	Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error)
	// Ready 检查存储是否可用
	Ready() bool
}

// NoopVectorStore 空实现，向量检索未配置时使用
type NoopVectorStore struct{}

func (n *NoopVectorStore) Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error) {
	return nil, nil
}

func (n *NoopVectorStore) Ready() bool {
	return false
}
