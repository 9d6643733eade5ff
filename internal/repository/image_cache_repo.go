package repository

import (
	"context"
	"errors"

	"github.com/docshub/rag-go/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// imageCacheRepository 图片描述缓存仓库实现
type imageCacheRepository struct {
	db *gorm.DB
}

// NewImageCacheRepository 创建图片描述缓存仓库
func NewImageCacheRepository(db *gorm.DB) ImageCacheRepository {
	return &imageCacheRepository{db: db}
}

// Get 根据图片哈希获取缓存条目，不存在时返回nil
func (r *imageCacheRepository) Get(ctx context.Context, imageHash string) (*models.ImageCacheEntry, error) {
	var entry models.ImageCacheEntry
	err := r.db.WithContext(ctx).Where("image_hash = ?", imageHash).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Put 写入缓存条目，哈希冲突时保留已有条目
func (r *imageCacheRepository) Put(ctx context.Context, entry *models.ImageCacheEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "image_hash"}},
		DoNothing: true,
	}).Create(entry).Error
}

// Update 更新缓存条目的描述与模型版本
func (r *imageCacheRepository) Update(ctx context.Context, imageHash string, description, modelVersion string) error {
	return r.db.WithContext(ctx).Model(&models.ImageCacheEntry{}).
		Where("image_hash = ?", imageHash).
		Updates(map[string]interface{}{
			"description":   description,
			"model_version": modelVersion,
		}).Error
}

// ListByModelVersion 获取模型版本不匹配的缓存条目，用于批量重新描述
func (r *imageCacheRepository) ListByModelVersion(ctx context.Context, excludeModel string, limit int) ([]models.ImageCacheEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []models.ImageCacheEntry
	err := r.db.WithContext(ctx).
		Where("model_version <> ?", excludeModel).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
