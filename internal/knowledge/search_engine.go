package knowledge

import (
	"context"
	"errors"
	"sort"
	"strings"

	apperrors "github.com/docshub/rag-go/internal/errors"
	"github.com/docshub/rag-go/internal/logger"
	"go.uber.org/zap"
)

// HybridSearchRequest 混合检索请求
type HybridSearchRequest struct {
	Query string
	Limit int // 最终返回数量，0表示使用引擎默认值
}

// RankedMatch 融合排序后的检索结果，保留各通道原始得分
type RankedMatch struct {
	SearchMatch
	VectorScore  float64
	KeywordScore float64
	FusedScore   float64
	RerankScore  float64
	Rank         int
}

// SearchOutcome 一次混合检索的完整结果
type SearchOutcome struct {
	Matches        []RankedMatch
	RerankApplied  bool // 重排序是否成功执行
	RerankDegraded bool // 重排序失败后回退到融合顺序
}

// HybridSearchEngine 组合全文与向量搜索，加权融合后重排序
type HybridSearchEngine struct {
	indexer     FulltextIndexer
	vectorStore VectorStore
	embedder    Embedder
	reranker    Reranker

	vectorWeight   float64 // 向量检索权重（默认0.7）
	keywordWeight  float64 // 全文检索权重（默认0.3）
	candidateLimit int     // 单通道候选数量（默认25）
	fusedLimit     int     // 融合后候选上限（默认50）
	minScore       float64 // 融合得分下限，低于此值视为无关
	rerankMax      int     // 重排序候选上限
	rerankTopK     int     // 重排序后保留数量
}

func NewHybridSearchEngine(indexer FulltextIndexer, vectorStore VectorStore, embedder Embedder, reranker Reranker) *HybridSearchEngine {
	engine := &HybridSearchEngine{
		indexer:        indexer,
		vectorStore:    vectorStore,
		embedder:       embedder,
		reranker:       reranker,
		vectorWeight:   0.7,
		keywordWeight:  0.3,
		candidateLimit: 25,
		fusedLimit:     50,
		minScore:       0.05,
		rerankMax:      50,
		rerankTopK:     5,
	}
	return engine
}

// SetWeights 设置混合检索权重
func (e *HybridSearchEngine) SetWeights(vectorWeight, keywordWeight float64) {
	if vectorWeight > 0 && keywordWeight > 0 {
		// 归一化权重
		total := vectorWeight + keywordWeight
		e.vectorWeight = vectorWeight / total
		e.keywordWeight = keywordWeight / total
	}
}

// SetLimits 设置候选数量上限
func (e *HybridSearchEngine) SetLimits(candidateLimit, fusedLimit int) {
	if candidateLimit > 0 {
		e.candidateLimit = candidateLimit
	}
	if fusedLimit > 0 {
		e.fusedLimit = fusedLimit
	}
}

// SetMinScore 设置融合得分下限
func (e *HybridSearchEngine) SetMinScore(minScore float64) {
	if minScore >= 0 {
		e.minScore = minScore
	}
}

// SetRerankBounds 设置重排序候选上限与保留数量
func (e *HybridSearchEngine) SetRerankBounds(maxCandidates, topK int) {
	if maxCandidates > 0 {
		e.rerankMax = maxCandidates
	}
	if topK > 0 {
		e.rerankTopK = topK
	}
}

// HasReranker 检查是否有可用的 Reranker
func (e *HybridSearchEngine) HasReranker() bool {
	return e.reranker != nil && e.reranker.Ready()
}

// GetReranker 获取当前的 Reranker
func (e *HybridSearchEngine) GetReranker() Reranker {
	return e.reranker
}

// GetEmbedder 获取当前的 Embedder
func (e *HybridSearchEngine) GetEmbedder() Embedder {
	return e.embedder
}

// normalizeScore 归一化全文检索得分到0-1范围
func (e *HybridSearchEngine) normalizeScore(score float64, maxScore float64) float64 {
	if maxScore == 0 {
		return 0
	}
	normalized := score / maxScore
	if normalized > 1.0 {
		normalized = 1.0
	}
	return normalized
}

func (e *HybridSearchEngine) Search(ctx context.Context, req HybridSearchRequest) (*SearchOutcome, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("query cannot be empty")
	}
	if req.Limit <= 0 {
		req.Limit = e.rerankTopK
	}

	useVector := e.vectorStore != nil && e.vectorStore.Ready() && e.embedder != nil && e.embedder.Ready()
	useFulltext := e.indexer != nil && e.indexer.Ready()

	if !useVector && !useFulltext {
		return nil, apperrors.NewRetrievalUnavailable(errors.New("no search backend configured"))
	}

	var (
		vectorResults []SearchMatch
		fullResults   []SearchMatch
		vectorErr     error
		fullErr       error
	)

	// 执行向量检索
	if useVector {
		embedding, err := e.embedder.Embed(ctx, req.Query)
		if err != nil {
			vectorErr = err
		} else {
			vectorResults, vectorErr = e.vectorStore.Search(ctx, VectorSearchRequest{
				Embedding: embedding,
				Limit:     e.candidateLimit,
			})
		}
		if vectorErr != nil {
			// 向量检索失败，降级为仅全文检索
			logger.Warn("向量检索失败，降级为仅全文检索", zap.Error(vectorErr))
			useVector = false
			vectorResults = nil
		}
	}

	// 执行全文检索
	if useFulltext {
		fullResults, fullErr = e.indexer.Search(ctx, FulltextSearchRequest{
			Query: req.Query,
			Limit: e.candidateLimit,
		})
		if fullErr != nil {
			// 全文检索失败，降级为仅向量检索
			logger.Warn("全文检索失败，降级为仅向量检索", zap.Error(fullErr))
			useFulltext = false
			fullResults = nil
		}
	}

	// 两个通道都失败时检索不可用
	if !useVector && !useFulltext {
		cause := fullErr
		if cause == nil {
			cause = vectorErr
		}
		return nil, apperrors.NewRetrievalUnavailable(cause)
	}

	// 加权融合
	fused := e.mergeResults(vectorResults, fullResults)

	// 得分下限过滤，全部低于下限时返回空结果
	filtered := fused[:0]
	for _, m := range fused {
		if m.FusedScore >= e.minScore {
			filtered = append(filtered, m)
		}
	}
	fused = filtered

	if len(fused) == 0 {
		return &SearchOutcome{Matches: nil}, nil
	}

	// 重排序，失败时保留融合顺序
	outcome := e.applyRerank(ctx, req.Query, fused)

	if len(outcome.Matches) > req.Limit {
		outcome.Matches = outcome.Matches[:req.Limit]
	}
	for i := range outcome.Matches {
		outcome.Matches[i].Rank = i + 1
	}

	return outcome, nil
}

// mergeResults 加权融合（向量×vectorWeight + 全文×keywordWeight）
func (e *HybridSearchEngine) mergeResults(vectorResults, fullResults []SearchMatch) []RankedMatch {
	// 归一化全文检索得分
	var maxFullScore float64
	for _, r := range fullResults {
		if r.Score > maxFullScore {
			maxFullScore = r.Score
		}
	}

	scoreMap := make(map[uint]*RankedMatch)

	// 处理向量结果
	for _, item := range vectorResults {
		m := &RankedMatch{SearchMatch: item}
		m.VectorScore = item.Score
		m.FusedScore = item.Score * e.vectorWeight
		scoreMap[item.SectionID] = m
	}

	// 处理全文结果
	for _, item := range fullResults {
		normalized := e.normalizeScore(item.Score, maxFullScore)
		if existing, ok := scoreMap[item.SectionID]; ok {
			existing.KeywordScore = normalized
			existing.FusedScore += normalized * e.keywordWeight
			if existing.Highlight == "" {
				existing.Highlight = item.Highlight
			}
			if existing.Content == "" {
				existing.Content = item.Content
			}
		} else {
			m := &RankedMatch{SearchMatch: item}
			m.KeywordScore = normalized
			m.FusedScore = normalized * e.keywordWeight
			scoreMap[item.SectionID] = m
		}
	}

	results := make([]RankedMatch, 0, len(scoreMap))
	for _, item := range scoreMap {
		results = append(results, *item)
	}

	sortFusedMatches(results)

	if len(results) > e.fusedLimit {
		results = results[:e.fusedLimit]
	}

	return results
}

// applyRerank 重排序，失败时回退到融合顺序并标记降级
func (e *HybridSearchEngine) applyRerank(ctx context.Context, query string, fused []RankedMatch) *SearchOutcome {
	outcome := &SearchOutcome{Matches: fused}

	if e.reranker == nil || !e.reranker.Ready() || len(fused) == 0 {
		return outcome
	}

	// 候选上限，超出部分保留融合顺序
	rerankN := len(fused)
	if rerankN > e.rerankMax {
		rerankN = e.rerankMax
	}

	candidates := fused[:rerankN]
	rerankDocs := make([]RerankDocument, len(candidates))
	for i, match := range candidates {
		rerankDocs[i] = RerankDocument{
			ID:      match.SectionID,
			Content: match.Content,
			Score:   match.FusedScore,
		}
	}

	rerankResults, err := e.reranker.Rerank(ctx, query, rerankDocs)
	if err != nil || len(rerankResults) == 0 {
		// 重排序失败，保留融合顺序并标记降级
		logger.Warn("重排序失败，保留融合顺序", zap.Error(err))
		outcome.RerankDegraded = true
		return outcome
	}

	idMap := make(map[uint]*RankedMatch, len(candidates))
	for i := range candidates {
		idMap[candidates[i].SectionID] = &candidates[i]
	}

	reranked := make([]RankedMatch, 0, len(fused))
	for _, rr := range rerankResults {
		if match, ok := idMap[rr.Document.ID]; ok {
			m := *match
			m.RerankScore = rr.Score
			reranked = append(reranked, m)
		}
	}

	// 未参与重排序的候选保留在尾部
	reranked = append(reranked, fused[rerankN:]...)

	outcome.Matches = reranked
	outcome.RerankApplied = true
	return outcome
}

// sortFusedMatches 按融合得分降序，同分时按文档更新时间降序、章节ID升序
func sortFusedMatches(matches []RankedMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].FusedScore != matches[j].FusedScore {
			return matches[i].FusedScore > matches[j].FusedScore
		}
		if !matches[i].DocUpdatedAt.Equal(matches[j].DocUpdatedAt) {
			return matches[i].DocUpdatedAt.After(matches[j].DocUpdatedAt)
		}
		return matches[i].SectionID < matches[j].SectionID
	})
}
