package services

import (
	"context"
	"fmt"
	"time"

	"github.com/docshub/rag-go/internal/knowledge"
	"github.com/docshub/rag-go/internal/logger"
	"github.com/docshub/rag-go/internal/metrics"
	"github.com/docshub/rag-go/internal/models"
	"github.com/docshub/rag-go/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ImageService 图片描述服务，按内容哈希缓存视觉模型的输出
type ImageService struct {
	cacheRepo repository.ImageCacheRepository
	vision    knowledge.VisionProvider
	redis     *redis.Client
	redisTTL  time.Duration
}

// NewImageService 创建图片描述服务，redis为可选的热缓存
func NewImageService(cacheRepo repository.ImageCacheRepository, vision knowledge.VisionProvider, redisClient *redis.Client, redisTTLSeconds int) *ImageService {
	ttl := time.Duration(redisTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ImageService{
		cacheRepo: cacheRepo,
		vision:    vision,
		redis:     redisClient,
		redisTTL:  ttl,
	}
}

func (s *ImageService) redisKey(imageHash string) string {
	return "imgdesc:" + imageHash
}

// Describe 获取图片描述，同一内容的图片只调用一次视觉模型。
// 命中即返回，不检查模型版本，版本刷新走 Redescribe。
func (s *ImageService) Describe(ctx context.Context, imageBytes []byte) (string, error) {
	if s.vision == nil || !s.vision.Ready() {
		return "", nil
	}

	imageHash := knowledge.HashBytes(imageBytes)

	// 热缓存
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, s.redisKey(imageHash)).Result(); err == nil && cached != "" {
			metrics.ImageCacheHits.WithLabelValues("hit_redis").Inc()
			return cached, nil
		}
	}

	// 持久缓存
	entry, err := s.cacheRepo.Get(ctx, imageHash)
	if err != nil {
		return "", fmt.Errorf("查询图片缓存失败: %w", err)
	}
	if entry != nil {
		metrics.ImageCacheHits.WithLabelValues("hit_db").Inc()
		s.warmRedis(ctx, imageHash, entry.Description)
		return entry.Description, nil
	}

	metrics.ImageCacheHits.WithLabelValues("miss").Inc()

	description, err := s.vision.Describe(ctx, imageBytes)
	if err != nil {
		return "", fmt.Errorf("生成图片描述失败: %w", err)
	}

	err = s.cacheRepo.Put(ctx, &models.ImageCacheEntry{
		ImageHash:    imageHash,
		Description:  description,
		ModelVersion: s.vision.ModelID(),
	})
	if err != nil {
		logger.Warn("写入图片缓存失败", zap.String("image_hash", imageHash), zap.Error(err))
	}

	s.warmRedis(ctx, imageHash, description)
	return description, nil
}

// Redescribe 跳过热缓存，仅当缓存条目的模型版本与当前模型不一致时重新生成描述
func (s *ImageService) Redescribe(ctx context.Context, imageBytes []byte) (string, error) {
	if s.vision == nil || !s.vision.Ready() {
		return "", nil
	}

	imageHash := knowledge.HashBytes(imageBytes)
	model := s.vision.ModelID()

	entry, err := s.cacheRepo.Get(ctx, imageHash)
	if err != nil {
		return "", fmt.Errorf("查询图片缓存失败: %w", err)
	}
	if entry != nil && entry.ModelVersion == model {
		return entry.Description, nil
	}

	description, err := s.vision.Describe(ctx, imageBytes)
	if err != nil {
		return "", fmt.Errorf("生成图片描述失败: %w", err)
	}

	if entry != nil {
		if err := s.cacheRepo.Update(ctx, imageHash, description, model); err != nil {
			logger.Warn("更新图片缓存失败", zap.String("image_hash", imageHash), zap.Error(err))
		}
	} else {
		err = s.cacheRepo.Put(ctx, &models.ImageCacheEntry{
			ImageHash:    imageHash,
			Description:  description,
			ModelVersion: model,
		})
		if err != nil {
			logger.Warn("写入图片缓存失败", zap.String("image_hash", imageHash), zap.Error(err))
		}
	}

	s.warmRedis(ctx, imageHash, description)
	return description, nil
}

func (s *ImageService) warmRedis(ctx context.Context, imageHash, description string) {
	if s.redis == nil || description == "" {
		return
	}
	if err := s.redis.Set(ctx, s.redisKey(imageHash), description, s.redisTTL).Err(); err != nil {
		logger.Debug("写入Redis图片缓存失败", zap.Error(err))
	}
}
