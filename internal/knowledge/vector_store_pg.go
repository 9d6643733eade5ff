package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// PgVectorStore 基于pgvector的向量检索实现
type PgVectorStore struct {
	db         *gorm.DB
	dimensions int
}

// NewPgVectorStore 创建pgvector检索器
func NewPgVectorStore(db *gorm.DB, dimensions int) *PgVectorStore {
	return &PgVectorStore{db: db, dimensions: dimensions}
}

func (s *PgVectorStore) Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error) {
	if s.db == nil {
		return nil, fmt.Errorf("vector store db is nil")
	}
	if len(req.Embedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	if s.dimensions > 0 && len(req.Embedding) != s.dimensions {
		return nil, fmt.Errorf("query embedding dimension %d does not match store dimension %d", len(req.Embedding), s.dimensions)
	}
	if req.Limit <= 0 {
		req.Limit = 25
	}

	vec := pgvector.NewVector(req.Embedding)

	var rows []struct {
		SectionID    uint
		DocumentID   uint
		SectionTitle string
		Content      string
		Distance     float64
		DocTitle     string
		URL          string
		DocUpdatedAt time.Time
	}

	// 余弦距离操作符<=>，相似度=1-距离
	err := s.db.WithContext(ctx).
		Table("document_sections").
		Select(`document_sections.section_id,
			document_sections.document_id,
			document_sections.title AS section_title,
			document_sections.content,
			document_sections.embedding <=> ? AS distance,
			documents.title AS doc_title,
			documents.source_url AS url,
			documents.updated_at AS doc_updated_at`, vec).
		Joins("JOIN documents ON documents.document_id = document_sections.document_id").
		Where("document_sections.embedding IS NOT NULL").
		Order("distance ASC").
		Limit(req.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	matches := make([]SearchMatch, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, SearchMatch{
			SectionID:    row.SectionID,
			DocumentID:   row.DocumentID,
			SectionTitle: row.SectionTitle,
			Content:      row.Content,
			Score:        1 - row.Distance,
			DocTitle:     row.DocTitle,
			URL:          row.URL,
			DocUpdatedAt: row.DocUpdatedAt,
		})
	}

	return matches, nil
}

func (s *PgVectorStore) Ready() bool {
	return s.db != nil
}
