package services

import (
	"context"

	apperrors "github.com/docshub/rag-go/internal/errors"
	"github.com/docshub/rag-go/internal/logger"
	"github.com/docshub/rag-go/internal/models"
	"github.com/docshub/rag-go/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TraceService 查询追踪服务
type TraceService struct {
	traceRepo repository.TraceRepository
}

// NewTraceService 创建查询追踪服务
func NewTraceService(traceRepo repository.TraceRepository) *TraceService {
	return &TraceService{traceRepo: traceRepo}
}

// NewTraceID 生成追踪ID
func (s *TraceService) NewTraceID() string {
	return uuid.NewString()
}

// Record 写入完整追踪记录
// 追踪写入失败是致命错误，调用方不得返回未追踪的回答
func (s *TraceService) Record(ctx context.Context, trace *models.QueryTrace, citations []models.TraceCitation, snapshots []models.TraceSectionSnapshot, answer *models.TraceAnswer) error {
	if trace.TraceID == "" {
		trace.TraceID = s.NewTraceID()
	}

	if err := s.traceRepo.Record(ctx, trace, citations, snapshots, answer); err != nil {
		logger.Error("写入查询追踪失败",
			zap.String("trace_id", trace.TraceID),
			zap.Error(err))
		return apperrors.NewTraceWriteFailed(trace.TraceID, err)
	}

	logger.Debug("查询追踪已写入",
		zap.String("trace_id", trace.TraceID),
		zap.Int("citations", len(citations)))
	return nil
}

// GetTrace 获取完整追踪记录
func (s *TraceService) GetTrace(ctx context.Context, traceID string) (*models.QueryTrace, error) {
	trace, err := s.traceRepo.GetByID(ctx, traceID)
	if err != nil {
		return nil, err
	}
	return trace, nil
}

// ListTraces 分页获取追踪记录
func (s *TraceService) ListTraces(ctx context.Context, userID string, page, limit int) ([]models.QueryTrace, int, error) {
	return s.traceRepo.ListByUser(ctx, userID, page, limit)
}
