package services

import (
	"context"
	"testing"

	"github.com/docshub/rag-go/internal/knowledge"
	"github.com/docshub/rag-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockImageCacheRepository 模拟图片缓存仓库
type MockImageCacheRepository struct {
	mock.Mock
}

func (m *MockImageCacheRepository) Get(ctx context.Context, imageHash string) (*models.ImageCacheEntry, error) {
	args := m.Called(ctx, imageHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImageCacheEntry), args.Error(1)
}

func (m *MockImageCacheRepository) Put(ctx context.Context, entry *models.ImageCacheEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockImageCacheRepository) Update(ctx context.Context, imageHash string, description, modelVersion string) error {
	args := m.Called(ctx, imageHash, description, modelVersion)
	return args.Error(0)
}

func (m *MockImageCacheRepository) ListByModelVersion(ctx context.Context, excludeModel string, limit int) ([]models.ImageCacheEntry, error) {
	args := m.Called(ctx, excludeModel, limit)
	entries, _ := args.Get(0).([]models.ImageCacheEntry)
	return entries, args.Error(1)
}

// countingVision 统计调用次数
type countingVision struct {
	calls int
	model string
}

func (c *countingVision) Describe(ctx context.Context, imageBytes []byte) (string, error) {
	c.calls++
	return "a diagram of the system", nil
}

func (c *countingVision) ModelID() string { return c.model }
func (c *countingVision) Ready() bool     { return true }

func TestDescribe_CacheMissCallsModelOnce(t *testing.T) {
	imageBytes := []byte("png-bytes")
	imageHash := knowledge.HashBytes(imageBytes)

	cacheRepo := new(MockImageCacheRepository)
	cacheRepo.On("Get", mock.Anything, imageHash).Return(nil, nil).Once()
	cacheRepo.On("Put", mock.Anything, mock.MatchedBy(func(e *models.ImageCacheEntry) bool {
		return e.ImageHash == imageHash && e.ModelVersion == "vision-v1"
	})).Return(nil).Once()

	vision := &countingVision{model: "vision-v1"}
	svc := NewImageService(cacheRepo, vision, nil, 0)

	description, err := svc.Describe(context.Background(), imageBytes)
	require.NoError(t, err)
	assert.Equal(t, "a diagram of the system", description)
	assert.Equal(t, 1, vision.calls)
	cacheRepo.AssertExpectations(t)
}

func TestDescribe_CacheHitSkipsModel(t *testing.T) {
	imageBytes := []byte("png-bytes")
	imageHash := knowledge.HashBytes(imageBytes)

	cacheRepo := new(MockImageCacheRepository)
	cacheRepo.On("Get", mock.Anything, imageHash).Return(&models.ImageCacheEntry{
		ImageHash:    imageHash,
		Description:  "cached description",
		ModelVersion: "vision-v1",
	}, nil)

	vision := &countingVision{model: "vision-v1"}
	svc := NewImageService(cacheRepo, vision, nil, 0)

	description, err := svc.Describe(context.Background(), imageBytes)
	require.NoError(t, err)
	assert.Equal(t, "cached description", description)
	assert.Equal(t, 0, vision.calls)
}

func TestDescribe_HitIgnoresModelVersion(t *testing.T) {
	imageBytes := []byte("png-bytes")
	imageHash := knowledge.HashBytes(imageBytes)

	cacheRepo := new(MockImageCacheRepository)
	cacheRepo.On("Get", mock.Anything, imageHash).Return(&models.ImageCacheEntry{
		ImageHash:    imageHash,
		Description:  "old description",
		ModelVersion: "vision-v1",
	}, nil)

	vision := &countingVision{model: "vision-v2"}
	svc := NewImageService(cacheRepo, vision, nil, 0)

	description, err := svc.Describe(context.Background(), imageBytes)
	require.NoError(t, err)
	assert.Equal(t, "old description", description)
	assert.Equal(t, 0, vision.calls)
	cacheRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRedescribe_SameModelVersionKeepsEntry(t *testing.T) {
	imageBytes := []byte("png-bytes")
	imageHash := knowledge.HashBytes(imageBytes)

	cacheRepo := new(MockImageCacheRepository)
	cacheRepo.On("Get", mock.Anything, imageHash).Return(&models.ImageCacheEntry{
		ImageHash:    imageHash,
		Description:  "cached description",
		ModelVersion: "vision-v1",
	}, nil)

	vision := &countingVision{model: "vision-v1"}
	svc := NewImageService(cacheRepo, vision, nil, 0)

	description, err := svc.Redescribe(context.Background(), imageBytes)
	require.NoError(t, err)
	assert.Equal(t, "cached description", description)
	assert.Equal(t, 0, vision.calls)
	cacheRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRedescribe_NewModelVersionRegenerates(t *testing.T) {
	imageBytes := []byte("png-bytes")
	imageHash := knowledge.HashBytes(imageBytes)

	cacheRepo := new(MockImageCacheRepository)
	cacheRepo.On("Get", mock.Anything, imageHash).Return(&models.ImageCacheEntry{
		ImageHash:    imageHash,
		Description:  "old description",
		ModelVersion: "vision-v1",
	}, nil)
	cacheRepo.On("Update", mock.Anything, imageHash, "a diagram of the system", "vision-v2").Return(nil).Once()

	vision := &countingVision{model: "vision-v2"}
	svc := NewImageService(cacheRepo, vision, nil, 0)

	description, err := svc.Redescribe(context.Background(), imageBytes)
	require.NoError(t, err)
	assert.Equal(t, "a diagram of the system", description)
	assert.Equal(t, 1, vision.calls)
	cacheRepo.AssertExpectations(t)
}

func TestDescribe_DuplicateBytesSameHash(t *testing.T) {
	first := knowledge.HashBytes([]byte("same bytes"))
	second := knowledge.HashBytes([]byte("same bytes"))
	assert.Equal(t, first, second)
}
