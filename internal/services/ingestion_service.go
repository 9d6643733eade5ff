package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/docshub/rag-go/internal/errors"
	"github.com/docshub/rag-go/internal/kafka"
	"github.com/docshub/rag-go/internal/knowledge"
	"github.com/docshub/rag-go/internal/logger"
	"github.com/docshub/rag-go/internal/metrics"
	"github.com/docshub/rag-go/internal/models"
	"github.com/docshub/rag-go/internal/repository"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// 入库动作
const (
	ActionIndexed   = "indexed"
	ActionUnchanged = "unchanged"
	ActionDeleted   = "deleted"
)

// IngestResult 单个文档的入库结果
type IngestResult struct {
	Action       string
	DocumentID   uint
	SectionCount int
	ContentHash  string
}

// IngestionService 文档入库服务
// 解析、切分、描述图片、嵌入并在单个事务内替换文档章节
type IngestionService struct {
	docRepo      repository.DocumentRepository
	indexer      knowledge.FulltextIndexer
	embedder     knowledge.Embedder
	parser       *knowledge.MarkdownParser
	splitter     *knowledge.SectionSplitter
	imageService *ImageService
	corpusPath   string

	// 按文件路径串行化，同一文档的并发入库互斥
	locks sync.Map
}

// NewIngestionService 创建文档入库服务
func NewIngestionService(
	docRepo repository.DocumentRepository,
	indexer knowledge.FulltextIndexer,
	embedder knowledge.Embedder,
	parser *knowledge.MarkdownParser,
	splitter *knowledge.SectionSplitter,
	imageService *ImageService,
	corpusPath string,
) *IngestionService {
	return &IngestionService{
		docRepo:      docRepo,
		indexer:      indexer,
		embedder:     embedder,
		parser:       parser,
		splitter:     splitter,
		imageService: imageService,
		corpusPath:   corpusPath,
	}
}

func (s *IngestionService) lockFor(filePath string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(filePath, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// IngestFile 从磁盘读取并入库单个文档
func (s *IngestionService) IngestFile(ctx context.Context, filePath string) (*IngestResult, error) {
	fullPath := filePath
	if s.corpusPath != "" && !filepath.IsAbs(filePath) {
		fullPath = filepath.Join(s.corpusPath, filePath)
	}
	raw, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, apperrors.NewIndexingFailed(filePath, err)
	}
	return s.IngestContent(ctx, filePath, raw)
}

// IngestContent 入库单个文档的内容
// 内容哈希与已索引版本一致时跳过，任何步骤失败时整个文档不入库
func (s *IngestionService) IngestContent(ctx context.Context, filePath string, raw []byte) (*IngestResult, error) {
	mu := s.lockFor(filePath)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	contentHash := knowledge.HashText(string(raw))

	existing, err := s.docRepo.GetByFilePath(ctx, filePath)
	if err != nil {
		return nil, apperrors.NewIndexingFailed(filePath, err)
	}
	if existing != nil && existing.ContentHash == contentHash {
		logger.Debug("文档内容未变化，跳过入库", zap.String("file_path", filePath))
		metrics.DocumentsIngested.WithLabelValues(ActionUnchanged).Inc()
		return &IngestResult{
			Action:      ActionUnchanged,
			DocumentID:  existing.DocumentID,
			ContentHash: contentHash,
		}, nil
	}

	parsed := s.parser.Parse(filePath, string(raw))
	parsed.ContentHash = contentHash

	sections := parsed.Sections
	if s.splitter != nil {
		sections = s.splitter.Split(sections)
	}

	// 图片描述追加到所在章节内容
	imageHashes, err := s.describeImages(ctx, filePath, sections)
	if err != nil {
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
		return nil, apperrors.NewIndexingFailed(filePath, err)
	}

	records, err := s.buildSectionModels(ctx, sections, imageHashes)
	if err != nil {
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
		return nil, apperrors.NewIndexingFailed(filePath, err)
	}

	breadcrumb, _ := json.Marshal(parsed.Breadcrumb)
	doc := &models.Document{
		Title:       parsed.Title,
		FilePath:    parsed.FilePath,
		SourceURL:   parsed.URL,
		Breadcrumb:  string(breadcrumb),
		ContentHash: contentHash,
	}

	if err := s.docRepo.ReplaceSections(ctx, doc, records); err != nil {
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
		return nil, apperrors.NewIndexingFailed(filePath, err)
	}

	// 事务提交后同步外部全文索引，失败不回滚入库
	s.syncFulltext(ctx, doc, records)

	metrics.DocumentsIngested.WithLabelValues(ActionIndexed).Inc()
	if err := kafka.SendIngestionEvent(ActionIndexed, filePath, doc.DocumentID, contentHash, len(records)); err != nil {
		logger.Warn("发送入库事件失败", zap.String("file_path", filePath), zap.Error(err))
	}

	logger.Info("文档入库完成",
		zap.String("file_path", filePath),
		zap.Uint("document_id", doc.DocumentID),
		zap.Int("sections", len(records)))

	return &IngestResult{
		Action:       ActionIndexed,
		DocumentID:   doc.DocumentID,
		SectionCount: len(records),
		ContentHash:  contentHash,
	}, nil
}

// DeleteDocument 删除文档及其索引
func (s *IngestionService) DeleteDocument(ctx context.Context, filePath string) (*IngestResult, error) {
	mu := s.lockFor(filePath)
	mu.Lock()
	defer mu.Unlock()

	docID, err := s.docRepo.DeleteByFilePath(ctx, filePath)
	if err != nil {
		return nil, apperrors.NewIndexingFailed(filePath, err)
	}
	if docID == 0 {
		return &IngestResult{Action: ActionUnchanged}, nil
	}

	if s.indexer != nil && s.indexer.Ready() {
		if err := s.indexer.RemoveDocument(ctx, docID); err != nil {
			logger.Warn("移除全文索引失败", zap.Uint("document_id", docID), zap.Error(err))
		}
	}

	metrics.DocumentsIngested.WithLabelValues(ActionDeleted).Inc()
	if err := kafka.SendIngestionEvent(ActionDeleted, filePath, docID, "", 0); err != nil {
		logger.Warn("发送删除事件失败", zap.String("file_path", filePath), zap.Error(err))
	}

	return &IngestResult{Action: ActionDeleted, DocumentID: docID}, nil
}

// IngestCorpus 遍历语料目录入库全部markdown文档
func (s *IngestionService) IngestCorpus(ctx context.Context) (indexed, unchanged, failed int, err error) {
	if s.corpusPath == "" {
		return 0, 0, 0, fmt.Errorf("corpus path is not configured")
	}

	walkErr := filepath.WalkDir(s.corpusPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(s.corpusPath, path)
		if err != nil {
			rel = path
		}

		result, err := s.IngestFile(ctx, rel)
		if err != nil {
			failed++
			logger.Error("文档入库失败", zap.String("file_path", rel), zap.Error(err))
			return nil
		}
		switch result.Action {
		case ActionIndexed:
			indexed++
		case ActionUnchanged:
			unchanged++
		}
		return nil
	})
	if walkErr != nil {
		return indexed, unchanged, failed, walkErr
	}

	logger.Info("语料入库完成",
		zap.Int("indexed", indexed),
		zap.Int("unchanged", unchanged),
		zap.Int("failed", failed))
	return indexed, unchanged, failed, nil
}

// describeImages 为章节内的图片生成描述并追加到内容
// 返回图片路径到内容哈希的映射
func (s *IngestionService) describeImages(ctx context.Context, filePath string, sections []knowledge.ParsedSection) (map[string]string, error) {
	hashes := make(map[string]string)
	if s.imageService == nil {
		return hashes, nil
	}

	docDir := filepath.Dir(filePath)
	for i := range sections {
		if !sections[i].HasImages {
			continue
		}
		var descriptions []string
		for _, img := range sections[i].Images {
			imgPath := img.Path
			if strings.HasPrefix(imgPath, "http://") || strings.HasPrefix(imgPath, "https://") {
				continue
			}
			if !filepath.IsAbs(imgPath) {
				imgPath = filepath.Join(s.corpusPath, docDir, imgPath)
			}
			imgBytes, err := os.ReadFile(imgPath)
			if err != nil {
				logger.Warn("读取图片失败", zap.String("image_path", img.Path), zap.Error(err))
				continue
			}
			hashes[img.Path] = knowledge.HashBytes(imgBytes)
			description, err := s.imageService.Describe(ctx, imgBytes)
			if err != nil {
				return nil, err
			}
			if description != "" {
				descriptions = append(descriptions, fmt.Sprintf("[图片: %s] %s", img.AltText, description))
			}
		}
		if len(descriptions) > 0 {
			sections[i].Content = sections[i].Content + "\n\n" + strings.Join(descriptions, "\n")
		}
	}
	return hashes, nil
}

// buildSectionModels 批量嵌入章节并转换为存储模型
func (s *IngestionService) buildSectionModels(ctx context.Context, sections []knowledge.ParsedSection, imageHashes map[string]string) ([]models.DocumentSection, error) {
	records := make([]models.DocumentSection, 0, len(sections))

	var embeddings [][]float32
	if s.embedder != nil && s.embedder.Ready() {
		texts := make([]string, len(sections))
		for i, sec := range sections {
			texts[i] = sec.Title + "\n" + sec.Content
		}
		var err error
		embeddings, err = s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("章节嵌入失败: %w", err)
		}
	}

	for i, sec := range sections {
		record := models.DocumentSection{
			Title:        sec.Title,
			Content:      sec.Content,
			SectionOrder: sec.Order,
			HasCode:      sec.HasCode,
			HasImages:    sec.HasImages,
		}
		if embeddings != nil {
			record.Embedding = pgvector.NewVector(embeddings[i])
		}
		for _, img := range sec.Images {
			// 远程或读取失败的图片没有缓存条目，不落图片引用行
			hash, ok := imageHashes[img.Path]
			if !ok {
				continue
			}
			record.Images = append(record.Images, models.DocumentImage{
				ImageHash: hash,
				ImagePath: img.Path,
				AltText:   img.AltText,
			})
		}
		records = append(records, record)
	}

	return records, nil
}

// syncFulltext 将章节同步到外部全文索引
func (s *IngestionService) syncFulltext(ctx context.Context, doc *models.Document, records []models.DocumentSection) {
	if s.indexer == nil || !s.indexer.Ready() {
		return
	}

	if err := s.indexer.RemoveDocument(ctx, doc.DocumentID); err != nil {
		logger.Warn("清理旧全文索引失败", zap.Uint("document_id", doc.DocumentID), zap.Error(err))
	}

	for _, record := range records {
		err := s.indexer.IndexSection(ctx, knowledge.SectionRecord{
			SectionID:    record.SectionID,
			DocumentID:   doc.DocumentID,
			Title:        record.Title,
			Content:      record.Content,
			SectionOrder: record.SectionOrder,
			DocTitle:     doc.Title,
			URL:          doc.SourceURL,
			CreatedAt:    doc.UpdatedAt,
		})
		if err != nil {
			logger.Warn("同步全文索引失败",
				zap.Uint("section_id", record.SectionID),
				zap.Error(err))
		}
	}
}
