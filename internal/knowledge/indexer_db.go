package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"
)

// PostgresIndexer 基于PostgreSQL tsvector的全文检索实现。
// content_tsv列由摄取事务统一维护，索引写入无需额外动作。
type PostgresIndexer struct {
	db *gorm.DB
}

func NewPostgresIndexer(db *gorm.DB) FulltextIndexer {
	return &PostgresIndexer{db: db}
}

func (d *PostgresIndexer) IndexSection(ctx context.Context, record SectionRecord) error {
	// tsvector随分节行在同一事务内写入，这里无需处理
	return nil
}

func (d *PostgresIndexer) RemoveDocument(ctx context.Context, documentID uint) error {
	// 分节行删除时索引随行消失
	return nil
}

func (d *PostgresIndexer) Search(ctx context.Context, req FulltextSearchRequest) ([]SearchMatch, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, nil
	}
	if req.Limit <= 0 {
		req.Limit = 25
	}

	var rows []struct {
		SectionID    uint
		DocumentID   uint
		SectionTitle string
		Content      string
		Rank         float64
		DocTitle     string
		URL          string
		DocUpdatedAt time.Time
	}
	err := d.db.WithContext(ctx).
		Table("document_sections").
		Select(`document_sections.section_id,
			document_sections.document_id,
			document_sections.title AS section_title,
			document_sections.content,
			ts_rank(document_sections.content_tsv, plainto_tsquery('english', ?)) AS rank,
			documents.title AS doc_title,
			documents.source_url AS url,
			documents.updated_at AS doc_updated_at`, req.Query).
		Joins("JOIN documents ON document_sections.document_id = documents.document_id").
		Where("document_sections.content_tsv @@ plainto_tsquery('english', ?)", req.Query).
		Order("rank DESC").
		Limit(req.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fulltext search failed: %w", err)
	}

	matches := make([]SearchMatch, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, SearchMatch{
			SectionID:    row.SectionID,
			DocumentID:   row.DocumentID,
			SectionTitle: row.SectionTitle,
			Content:      row.Content,
			Score:        row.Rank,
			DocTitle:     row.DocTitle,
			URL:          row.URL,
			DocUpdatedAt: row.DocUpdatedAt,
			Highlight:    buildHighlight(row.Content, req.Query),
		})
	}
	return matches, nil
}

func (d *PostgresIndexer) Ready() bool {
	return d.db != nil
}

// buildHighlight 截取命中词前后的摘要片段。
// 大小写折叠按码点逐一比较，偏移量始终落在码点边界上。
func buildHighlight(content, query string) string {
	queryRunes := []rune(strings.TrimSpace(query))
	if len(queryRunes) == 0 {
		return ""
	}
	contentRunes := []rune(content)

	idx := -1
	for i := 0; i+len(queryRunes) <= len(contentRunes); i++ {
		matched := true
		for j := range queryRunes {
			if unicode.ToLower(contentRunes[i+j]) != unicode.ToLower(queryRunes[j]) {
				matched = false
				break
			}
		}
		if matched {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ""
	}

	start := idx - 40
	if start < 0 {
		start = 0
	}
	end := idx + len(queryRunes) + 40
	if end > len(contentRunes) {
		end = len(contentRunes)
	}
	return string(contentRunes[start:idx]) +
		"<mark>" + string(contentRunes[idx:idx+len(queryRunes)]) + "</mark>" +
		string(contentRunes[idx+len(queryRunes):end])
}
