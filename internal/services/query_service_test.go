package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docshub/rag-go/internal/knowledge"
	"github.com/docshub/rag-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTraceRepository 模拟追踪仓库
type MockTraceRepository struct {
	mock.Mock
}

func (m *MockTraceRepository) Record(ctx context.Context, trace *models.QueryTrace, citations []models.TraceCitation, snapshots []models.TraceSectionSnapshot, answer *models.TraceAnswer) error {
	args := m.Called(ctx, trace, citations, snapshots, answer)
	return args.Error(0)
}

func (m *MockTraceRepository) GetByID(ctx context.Context, traceID string) (*models.QueryTrace, error) {
	args := m.Called(ctx, traceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueryTrace), args.Error(1)
}

func (m *MockTraceRepository) ListByUser(ctx context.Context, userID string, page, limit int) ([]models.QueryTrace, int, error) {
	args := m.Called(ctx, userID, page, limit)
	return args.Get(0).([]models.QueryTrace), args.Int(1), args.Error(2)
}

// stubEmbedder 固定向量
type stubEmbedder struct{}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return 2 }
func (s *stubEmbedder) ModelID() string { return "stub-embed" }
func (s *stubEmbedder) Ready() bool     { return true }

// stubVectorStore 预置命中
type stubVectorStore struct {
	matches []knowledge.SearchMatch
}

func (s *stubVectorStore) Search(ctx context.Context, req knowledge.VectorSearchRequest) ([]knowledge.SearchMatch, error) {
	return s.matches, nil
}

func (s *stubVectorStore) Ready() bool { return true }

// stubIndexer 空全文结果
type stubIndexer struct{}

func (s *stubIndexer) IndexSection(ctx context.Context, record knowledge.SectionRecord) error {
	return nil
}
func (s *stubIndexer) RemoveDocument(ctx context.Context, documentID uint) error { return nil }
func (s *stubIndexer) Search(ctx context.Context, req knowledge.FulltextSearchRequest) ([]knowledge.SearchMatch, error) {
	return nil, nil
}
func (s *stubIndexer) Ready() bool { return true }

// stubReranker 固定分数或失败
type stubReranker struct {
	score float64
	err   error
}

func (s *stubReranker) Rerank(ctx context.Context, query string, documents []knowledge.RerankDocument) ([]knowledge.RerankResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	results := make([]knowledge.RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = knowledge.RerankResult{Document: doc, Score: s.score, Rank: i + 1}
	}
	return results, nil
}

func (s *stubReranker) ModelID() string { return "stub-rerank" }
func (s *stubReranker) Ready() bool     { return true }

// stubGenerator 固定回答
type stubGenerator struct{}

func (s *stubGenerator) Generate(ctx context.Context, question, contextText string) (*knowledge.GeneratedAnswer, error) {
	return &knowledge.GeneratedAnswer{Text: "answer with [1]", GenerationTimeMs: 12, TokenCount: 5}, nil
}

func (s *stubGenerator) ModelID() string { return "stub-llm" }
func (s *stubGenerator) Ready() bool     { return true }

func sectionMatch(id uint, score float64) knowledge.SearchMatch {
	return knowledge.SearchMatch{
		SectionID:    id,
		DocumentID:   1,
		SectionTitle: "Setup",
		Content:      "section content",
		Score:        score,
		DocTitle:     "Guide",
		URL:          "https://docs.example.com/guide.html",
		DocUpdatedAt: time.Now(),
	}
}

func newQueryService(store knowledge.VectorStore, reranker knowledge.Reranker, traceRepo *MockTraceRepository) *QueryService {
	engine := knowledge.NewHybridSearchEngine(&stubIndexer{}, store, &stubEmbedder{}, reranker)
	traceService := NewTraceService(traceRepo)
	return NewQueryService(engine, &stubGenerator{}, traceService, 0.35, 0.75)
}

func TestAnswer_CitationsAreDenselyNumbered(t *testing.T) {
	store := &stubVectorStore{matches: []knowledge.SearchMatch{
		sectionMatch(1, 0.9), sectionMatch(2, 0.8), sectionMatch(3, 0.7),
	}}
	traceRepo := new(MockTraceRepository)

	var recorded []models.TraceCitation
	traceRepo.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			recorded = args.Get(2).([]models.TraceCitation)
		}).Return(nil)

	svc := newQueryService(store, &stubReranker{score: 0.9}, traceRepo)

	result, err := svc.Answer(context.Background(), AnswerRequest{Query: "how to setup", TopK: 3})
	require.NoError(t, err)
	require.Len(t, result.Citations, 3)

	for i, c := range result.Citations {
		assert.Equal(t, i+1, c.Number)
	}
	for i, c := range recorded {
		assert.Equal(t, i+1, c.CitationNumber)
	}
	assert.NotEmpty(t, result.TraceID)
	assert.Equal(t, "answer with [1]", result.Answer)
}

func TestAnswer_ConfidenceFromTopScore(t *testing.T) {
	cases := []struct {
		name     string
		score    float64
		expected string
	}{
		{"high", 0.9, ConfidenceHigh},
		{"medium", 0.5, ConfidenceMedium},
		{"low", 0.2, ConfidenceLow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &stubVectorStore{matches: []knowledge.SearchMatch{sectionMatch(1, 0.9)}}
			traceRepo := new(MockTraceRepository)
			traceRepo.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

			svc := newQueryService(store, &stubReranker{score: tc.score}, traceRepo)

			result, err := svc.Answer(context.Background(), AnswerRequest{Query: "q"})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result.Confidence)
		})
	}
}

func TestAnswer_NoEvidenceStillWritesTrace(t *testing.T) {
	store := &stubVectorStore{matches: nil}
	traceRepo := new(MockTraceRepository)

	var recordedTrace *models.QueryTrace
	var recordedAnswer *models.TraceAnswer
	traceRepo.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			recordedTrace = args.Get(1).(*models.QueryTrace)
			citations, _ := args.Get(2).([]models.TraceCitation)
			assert.Empty(t, citations)
			recordedAnswer = args.Get(4).(*models.TraceAnswer)
		}).Return(nil)

	svc := newQueryService(store, &stubReranker{score: 0.9}, traceRepo)

	result, err := svc.Answer(context.Background(), AnswerRequest{Query: "unknown topic"})
	require.NoError(t, err)

	assert.True(t, result.NoEvidence)
	assert.Empty(t, result.Citations)
	assert.Equal(t, ConfidenceLow, result.Confidence)
	require.NotNil(t, recordedTrace)
	assert.Equal(t, "unknown topic", recordedTrace.QueryText)
	require.NotNil(t, recordedAnswer)
	assert.Equal(t, "no evidence", recordedAnswer.AnswerText)
	traceRepo.AssertExpectations(t)
}

func TestAnswer_TraceWriteFailureIsFatal(t *testing.T) {
	store := &stubVectorStore{matches: []knowledge.SearchMatch{sectionMatch(1, 0.9)}}
	traceRepo := new(MockTraceRepository)
	traceRepo.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("db connection lost"))

	svc := newQueryService(store, &stubReranker{score: 0.9}, traceRepo)

	result, err := svc.Answer(context.Background(), AnswerRequest{Query: "q"})
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestAnswer_RerankFallbackRecordedInTrace(t *testing.T) {
	store := &stubVectorStore{matches: []knowledge.SearchMatch{sectionMatch(1, 0.9)}}
	traceRepo := new(MockTraceRepository)

	var recordedTrace *models.QueryTrace
	traceRepo.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			recordedTrace = args.Get(1).(*models.QueryTrace)
		}).Return(nil)

	svc := newQueryService(store, &stubReranker{err: errors.New("endpoint down")}, traceRepo)

	result, err := svc.Answer(context.Background(), AnswerRequest{Query: "q"})
	require.NoError(t, err)

	assert.True(t, result.RerankDegraded)
	require.NotNil(t, recordedTrace)
	assert.Equal(t, "stub-rerank!fallback=fused", recordedTrace.RerankerModel)
}

func TestAnswer_SnapshotsCaptureContent(t *testing.T) {
	store := &stubVectorStore{matches: []knowledge.SearchMatch{sectionMatch(1, 0.9)}}
	traceRepo := new(MockTraceRepository)

	var recordedSnapshots []models.TraceSectionSnapshot
	traceRepo.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			recordedSnapshots = args.Get(3).([]models.TraceSectionSnapshot)
		}).Return(nil)

	svc := newQueryService(store, &stubReranker{score: 0.9}, traceRepo)

	_, err := svc.Answer(context.Background(), AnswerRequest{Query: "q"})
	require.NoError(t, err)

	require.Len(t, recordedSnapshots, 1)
	assert.Equal(t, uint(1), recordedSnapshots[0].SectionID)
	assert.Equal(t, "section content", recordedSnapshots[0].ContentSnapshot)
}

func TestAnswer_SnapshotsSurviveContentReplacement(t *testing.T) {
	match := sectionMatch(1, 0.9)
	match.Content = "original section content"
	store := &stubVectorStore{matches: []knowledge.SearchMatch{match}}
	traceRepo := new(MockTraceRepository)

	var allSnapshots [][]models.TraceSectionSnapshot
	traceRepo.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			allSnapshots = append(allSnapshots, args.Get(3).([]models.TraceSectionSnapshot))
		}).Return(nil)

	svc := newQueryService(store, &stubReranker{score: 0.9}, traceRepo)

	first, err := svc.Answer(context.Background(), AnswerRequest{Query: "q"})
	require.NoError(t, err)

	// 重新摄取替换了分节内容，旧追踪的快照保持原样
	replaced := sectionMatch(1, 0.9)
	replaced.Content = "rewritten section content"
	store.matches = []knowledge.SearchMatch{replaced}

	second, err := svc.Answer(context.Background(), AnswerRequest{Query: "q"})
	require.NoError(t, err)
	assert.NotEqual(t, first.TraceID, second.TraceID)

	require.Len(t, allSnapshots, 2)
	require.Len(t, allSnapshots[0], 1)
	assert.Equal(t, "original section content", allSnapshots[0][0].ContentSnapshot)
	require.Len(t, allSnapshots[1], 1)
	assert.Equal(t, "rewritten section content", allSnapshots[1][0].ContentSnapshot)
}

func TestAnswer_EmptyQueryRejected(t *testing.T) {
	svc := newQueryService(&stubVectorStore{}, &stubReranker{}, new(MockTraceRepository))

	_, err := svc.Answer(context.Background(), AnswerRequest{Query: "  "})
	assert.Error(t, err)
}
