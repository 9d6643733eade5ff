package repository

import (
	"context"

	"github.com/docshub/rag-go/internal/models"
	"gorm.io/gorm"
)

// DocumentRepository 文档仓库接口
type DocumentRepository interface {
	GetDB() *gorm.DB
	GetByFilePath(ctx context.Context, filePath string) (*models.Document, error)
	GetByID(ctx context.Context, id uint) (*models.Document, error)
	List(ctx context.Context, page, limit int, search string) ([]models.Document, int, error)
	// ReplaceSections 在单个事务内替换文档及其全部章节，章节可携带图片引用
	ReplaceSections(ctx context.Context, doc *models.Document, sections []models.DocumentSection) error
	DeleteByFilePath(ctx context.Context, filePath string) (uint, error)
	GetSectionsByIDs(ctx context.Context, ids []uint) ([]models.DocumentSection, error)
	CountSections(ctx context.Context) (int64, error)
}

// ImageCacheRepository 图片描述缓存仓库接口
type ImageCacheRepository interface {
	Get(ctx context.Context, imageHash string) (*models.ImageCacheEntry, error)
	Put(ctx context.Context, entry *models.ImageCacheEntry) error
	Update(ctx context.Context, imageHash string, description, modelVersion string) error
	ListByModelVersion(ctx context.Context, excludeModel string, limit int) ([]models.ImageCacheEntry, error)
}

// TraceRepository 查询追踪仓库接口
type TraceRepository interface {
	// Record 在单个事务内写入追踪及其引用、快照、答案
	Record(ctx context.Context, trace *models.QueryTrace, citations []models.TraceCitation, snapshots []models.TraceSectionSnapshot, answer *models.TraceAnswer) error
	GetByID(ctx context.Context, traceID string) (*models.QueryTrace, error)
	ListByUser(ctx context.Context, userID string, page, limit int) ([]models.QueryTrace, int, error)
}
