package knowledge

import (
	"context"
	"time"
)

// SectionRecord 提供给全文索引的分节数据
type SectionRecord struct {
	SectionID    uint
	DocumentID   uint
	Title        string
	Content      string
	SectionOrder int
	DocTitle     string
	URL          string
	CreatedAt    time.Time
}

// FulltextSearchRequest 全文搜索请求
type FulltextSearchRequest struct {
	Query string
	Limit int
}

// SearchMatch 单路检索命中结果
type SearchMatch struct {
	SectionID    uint
	DocumentID   uint
	SectionTitle string
	Content      string
	Score        float64
	DocTitle     string
	URL          string
	DocUpdatedAt time.Time
	Highlight    string
}

// FulltextIndexer 词法检索接口。实现必须与摄取时使用的
// 索引表示保持一致，否则相关性得分不可比。
type FulltextIndexer interface {
	IndexSection(ctx context.Context, record SectionRecord) error
	RemoveDocument(ctx context.Context, documentID uint) error
	Search(ctx context.Context, req FulltextSearchRequest) ([]SearchMatch, error)
	Ready() bool
}
