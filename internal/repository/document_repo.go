package repository

import (
	"context"
	"errors"

	"github.com/docshub/rag-go/internal/models"
	"gorm.io/gorm"
)

// documentRepository 文档仓库实现
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓库
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// GetDB 获取数据库连接
func (r *documentRepository) GetDB() *gorm.DB {
	return r.db
}

// GetByFilePath 根据文件路径获取文档，不存在时返回nil
func (r *documentRepository) GetByFilePath(ctx context.Context, filePath string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Where("file_path = ?", filePath).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// GetByID 根据ID获取文档及其章节
func (r *documentRepository) GetByID(ctx context.Context, id uint) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Preload("Sections", func(db *gorm.DB) *gorm.DB {
		return db.Order("section_order ASC")
	}).Where("document_id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List 分页获取文档列表
func (r *documentRepository) List(ctx context.Context, page, limit int, search string) ([]models.Document, int, error) {
	var docs []models.Document
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Document{})
	if search != "" {
		query = query.Where("title ILIKE ? OR file_path ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	offset := (page - 1) * limit
	if err := query.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&docs).Error; err != nil {
		return nil, 0, err
	}

	return docs, int(total), nil
}

// ReplaceSections 在单个事务内替换文档及其全部章节
// 先删除旧章节再插入新章节，全文索引列在同一事务内刷新
func (r *documentRepository) ReplaceSections(ctx context.Context, doc *models.Document, sections []models.DocumentSection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Document
		err := tx.Where("file_path = ?", doc.FilePath).First(&existing).Error
		switch {
		case err == nil:
			// 已存在：删除旧章节，更新文档元信息
			if err := tx.Where("document_id = ?", existing.DocumentID).Delete(&models.DocumentSection{}).Error; err != nil {
				return err
			}
			updates := map[string]interface{}{
				"title":        doc.Title,
				"source_url":   doc.SourceURL,
				"breadcrumb":   doc.Breadcrumb,
				"content_hash": doc.ContentHash,
			}
			if err := tx.Model(&models.Document{}).Where("document_id = ?", existing.DocumentID).Updates(updates).Error; err != nil {
				return err
			}
			doc.DocumentID = existing.DocumentID
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(doc).Error; err != nil {
				return err
			}
		default:
			return err
		}

		if len(sections) > 0 {
			for i := range sections {
				sections[i].DocumentID = doc.DocumentID
			}
			if err := tx.Create(&sections).Error; err != nil {
				return err
			}

			// 刷新全文索引列
			if err := tx.Exec(
				`UPDATE document_sections SET content_tsv = to_tsvector('english', coalesce(title, '') || ' ' || coalesce(content, '')) WHERE document_id = ?`,
				doc.DocumentID,
			).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// DeleteByFilePath 删除文档及其章节，返回被删除的文档ID
func (r *documentRepository) DeleteByFilePath(ctx context.Context, filePath string) (uint, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Where("file_path = ?", filePath).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", doc.DocumentID).Delete(&models.DocumentSection{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Document{}, doc.DocumentID).Error
	})
	if err != nil {
		return 0, err
	}
	return doc.DocumentID, nil
}

// GetSectionsByIDs 批量获取章节
func (r *documentRepository) GetSectionsByIDs(ctx context.Context, ids []uint) ([]models.DocumentSection, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var sections []models.DocumentSection
	err := r.db.WithContext(ctx).Where("section_id IN ?", ids).Find(&sections).Error
	if err != nil {
		return nil, err
	}
	return sections, nil
}

// CountSections 统计章节总数
func (r *documentRepository) CountSections(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DocumentSection{}).Count(&count).Error
	return count, err
}
