package repository

import (
	"context"

	"github.com/docshub/rag-go/internal/models"
	"gorm.io/gorm"
)

// traceRepository 查询追踪仓库实现
type traceRepository struct {
	db *gorm.DB
}

// NewTraceRepository 创建查询追踪仓库
func NewTraceRepository(db *gorm.DB) TraceRepository {
	return &traceRepository{db: db}
}

// Record 在单个事务内写入追踪及其引用、快照、答案
// 追踪记录只写入一次，之后不再修改
func (r *traceRepository) Record(ctx context.Context, trace *models.QueryTrace, citations []models.TraceCitation, snapshots []models.TraceSectionSnapshot, answer *models.TraceAnswer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(trace).Error; err != nil {
			return err
		}

		if len(citations) > 0 {
			for i := range citations {
				citations[i].TraceID = trace.TraceID
			}
			if err := tx.Create(&citations).Error; err != nil {
				return err
			}
		}

		if len(snapshots) > 0 {
			for i := range snapshots {
				snapshots[i].TraceID = trace.TraceID
			}
			if err := tx.Create(&snapshots).Error; err != nil {
				return err
			}
		}

		if answer != nil {
			answer.TraceID = trace.TraceID
			if err := tx.Create(answer).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// GetByID 根据追踪ID获取完整追踪记录
func (r *traceRepository) GetByID(ctx context.Context, traceID string) (*models.QueryTrace, error) {
	var trace models.QueryTrace
	err := r.db.WithContext(ctx).
		Preload("Citations", func(db *gorm.DB) *gorm.DB {
			return db.Order("citation_number ASC")
		}).
		Preload("Snapshots").
		Preload("Answer").
		Where("trace_id = ?", traceID).
		First(&trace).Error
	if err != nil {
		return nil, err
	}
	return &trace, nil
}

// ListByUser 分页获取用户的追踪记录
func (r *traceRepository) ListByUser(ctx context.Context, userID string, page, limit int) ([]models.QueryTrace, int, error) {
	var traces []models.QueryTrace
	var total int64

	query := r.db.WithContext(ctx).Model(&models.QueryTrace{})
	if userID != "" {
		query = query.Where("user_id = ?", userID)
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
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&traces).Error; err != nil {
		return nil, 0, err
	}

	return traces, int(total), nil
}
