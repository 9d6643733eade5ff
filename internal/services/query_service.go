package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/docshub/rag-go/internal/errors"
	"github.com/docshub/rag-go/internal/knowledge"
	"github.com/docshub/rag-go/internal/logger"
	"github.com/docshub/rag-go/internal/metrics"
	"github.com/docshub/rag-go/internal/models"
	"go.uber.org/zap"
)

// 置信度等级
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// noEvidenceAnswer 检索无结果时记录在追踪中的回答标记
const noEvidenceAnswer = "no evidence"

// rerankFallbackSuffix 重排序降级时附加在追踪模型名后的标记
const rerankFallbackSuffix = "!fallback=fused"

// Citation 回答中的单条引用
type Citation struct {
	Number       int     `json:"number"`
	SectionID    uint    `json:"section_id"`
	DocTitle     string  `json:"doc_title"`
	SectionTitle string  `json:"section_title"`
	URL          string  `json:"url"`
	Score        float64 `json:"score"`
	Excerpt      string  `json:"excerpt"`
}

// AnswerRequest 回答请求
type AnswerRequest struct {
	Query  string
	UserID string
	TopK   int
}

// AnswerResult 完整回答结果，每个回答都带追踪ID
type AnswerResult struct {
	TraceID        string     `json:"trace_id"`
	Answer         string     `json:"answer"`
	Citations      []Citation `json:"citations"`
	Confidence     string     `json:"confidence"`
	NoEvidence     bool       `json:"no_evidence"`
	RerankDegraded bool       `json:"rerank_degraded"`
}

// QueryService 问答服务，检索、生成并记录完整追踪
type QueryService struct {
	engine       *knowledge.HybridSearchEngine
	generator    knowledge.AnswerGenerator
	traceService *TraceService

	lowThreshold  float64
	highThreshold float64
}

// NewQueryService 创建问答服务
func NewQueryService(engine *knowledge.HybridSearchEngine, generator knowledge.AnswerGenerator, traceService *TraceService, lowThreshold, highThreshold float64) *QueryService {
	if lowThreshold <= 0 {
		lowThreshold = 0.35
	}
	if highThreshold <= 0 {
		highThreshold = 0.75
	}
	return &QueryService{
		engine:        engine,
		generator:     generator,
		traceService:  traceService,
		lowThreshold:  lowThreshold,
		highThreshold: highThreshold,
	}
}

// Answer 回答问题
// 无论检索是否命中，每次调用都写入一条追踪记录，追踪写入失败时不返回回答
func (s *QueryService) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, &apperrors.PipelineError{
			Kind:    apperrors.KindInvalidInput,
			Message: "query cannot be empty",
		}
	}

	start := time.Now()
	defer func() {
		metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}()

	outcome, err := s.engine.Search(ctx, knowledge.HybridSearchRequest{
		Query: query,
		Limit: req.TopK,
	})
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if outcome.RerankDegraded {
		metrics.RerankDegraded.Inc()
	}

	// 无证据：仍然写入追踪，零引用，回答标记为固定值
	if len(outcome.Matches) == 0 {
		return s.answerNoEvidence(ctx, query, req.UserID, outcome)
	}

	contextText := buildContext(outcome.Matches)

	generated := &knowledge.GeneratedAnswer{}
	if s.generator != nil && s.generator.Ready() {
		generated, err = s.generator.Generate(ctx, query, contextText)
		if err != nil {
			metrics.QueriesTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("生成回答失败: %w", err)
		}
	}

	confidence := s.classifyConfidence(outcome)

	trace := &models.QueryTrace{
		TraceID:        s.traceService.NewTraceID(),
		QueryText:      query,
		UserID:         req.UserID,
		Confidence:     confidence,
		EmbeddingModel: s.embeddingModel(),
		RerankerModel:  s.rerankerModel(outcome),
		LLMModel:       s.llmModel(),
	}

	citations := make([]models.TraceCitation, 0, len(outcome.Matches))
	snapshots := make([]models.TraceSectionSnapshot, 0, len(outcome.Matches))
	resultCitations := make([]Citation, 0, len(outcome.Matches))

	for i, match := range outcome.Matches {
		score := match.RerankScore
		if !outcome.RerankApplied {
			score = match.FusedScore
		}
		citations = append(citations, models.TraceCitation{
			SectionID:      match.SectionID,
			CitationNumber: i + 1,
			RelevanceScore: score,
			DocTitle:       match.DocTitle,
			SectionTitle:   match.SectionTitle,
			URL:            match.URL,
		})
		snapshots = append(snapshots, models.TraceSectionSnapshot{
			SectionID:       match.SectionID,
			ContentSnapshot: match.Content,
		})
		resultCitations = append(resultCitations, Citation{
			Number:       i + 1,
			SectionID:    match.SectionID,
			DocTitle:     match.DocTitle,
			SectionTitle: match.SectionTitle,
			URL:          match.URL,
			Score:        score,
			Excerpt:      excerpt(match.Content),
		})
	}

	answer := &models.TraceAnswer{
		AnswerText:       generated.Text,
		GenerationTimeMs: generated.GenerationTimeMs,
		TokenCount:       generated.TokenCount,
	}

	if err := s.traceService.Record(ctx, trace, citations, snapshots, answer); err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.QueriesTotal.WithLabelValues("answered").Inc()
	logger.Info("回答完成",
		zap.String("trace_id", trace.TraceID),
		zap.String("confidence", confidence),
		zap.Int("citations", len(citations)),
		zap.Bool("rerank_degraded", outcome.RerankDegraded))

	return &AnswerResult{
		TraceID:        trace.TraceID,
		Answer:         generated.Text,
		Citations:      resultCitations,
		Confidence:     confidence,
		RerankDegraded: outcome.RerankDegraded,
	}, nil
}

// answerNoEvidence 无证据时的空结果，追踪仍然写入
func (s *QueryService) answerNoEvidence(ctx context.Context, query, userID string, outcome *knowledge.SearchOutcome) (*AnswerResult, error) {
	trace := &models.QueryTrace{
		TraceID:        s.traceService.NewTraceID(),
		QueryText:      query,
		UserID:         userID,
		Confidence:     ConfidenceLow,
		EmbeddingModel: s.embeddingModel(),
		RerankerModel:  s.rerankerModel(outcome),
		LLMModel:       s.llmModel(),
	}
	answer := &models.TraceAnswer{AnswerText: noEvidenceAnswer}

	if err := s.traceService.Record(ctx, trace, nil, nil, answer); err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.QueriesTotal.WithLabelValues("no_evidence").Inc()
	logger.Info("无证据可回答",
		zap.String("trace_id", trace.TraceID),
		zap.String("query", query))

	return &AnswerResult{
		TraceID:    trace.TraceID,
		Answer:     noEvidenceAnswer,
		Citations:  []Citation{},
		Confidence: ConfidenceLow,
		NoEvidence: true,
	}, nil
}

// classifyConfidence 按最高相关度得分划分置信度
func (s *QueryService) classifyConfidence(outcome *knowledge.SearchOutcome) string {
	if len(outcome.Matches) == 0 {
		return ConfidenceLow
	}

	top := outcome.Matches[0].RerankScore
	if !outcome.RerankApplied {
		top = outcome.Matches[0].FusedScore
	}

	switch {
	case top < s.lowThreshold:
		return ConfidenceLow
	case top >= s.highThreshold:
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}

func (s *QueryService) embeddingModel() string {
	if e := s.engine.GetEmbedder(); e != nil {
		return e.ModelID()
	}
	return ""
}

func (s *QueryService) llmModel() string {
	if s.generator != nil {
		return s.generator.ModelID()
	}
	return ""
}

// rerankerModel 追踪中记录的重排序模型名，降级时附加回退标记
func (s *QueryService) rerankerModel(outcome *knowledge.SearchOutcome) string {
	reranker := s.engine.GetReranker()
	if reranker == nil || reranker.ModelID() == "" {
		return ""
	}
	model := reranker.ModelID()
	if outcome != nil && outcome.RerankDegraded {
		return model + rerankFallbackSuffix
	}
	return model
}

// buildContext 将命中章节拼装成带编号的生成上下文
func buildContext(matches []knowledge.RankedMatch) string {
	var sb strings.Builder
	for i, match := range matches {
		sb.WriteString(fmt.Sprintf("[%d] %s / %s\n", i+1, match.DocTitle, match.SectionTitle))
		sb.WriteString(match.Content)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// excerpt 截取内容摘要
func excerpt(content string) string {
	const maxRunes = 200
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes]) + "..."
}
