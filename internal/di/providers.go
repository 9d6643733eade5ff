package di

import (
	"fmt"
	"time"

	"github.com/docshub/rag-go/internal/config"
	"github.com/docshub/rag-go/internal/database"
	"github.com/docshub/rag-go/internal/knowledge"
	"github.com/docshub/rag-go/internal/logger"
	"github.com/docshub/rag-go/internal/repository"
	"github.com/docshub/rag-go/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	// 配置
	if err := container.Provide(func() (*config.Config, error) {
		cfg := config.AppConfig
		if cfg == nil {
			return nil, fmt.Errorf("config not loaded")
		}
		return cfg, nil
	}); err != nil {
		return err
	}

	// 数据库
	if err := container.Provide(func(cfg *config.Config) (*gorm.DB, error) {
		return database.InitDB()
	}); err != nil {
		return err
	}

	// Redis，未启用时为nil
	if err := container.Provide(func(cfg *config.Config) (*redis.Client, error) {
		return database.InitRedis()
	}); err != nil {
		return err
	}

	// 仓库
	if err := container.Provide(repository.NewDocumentRepository); err != nil {
		return err
	}
	if err := container.Provide(repository.NewImageCacheRepository); err != nil {
		return err
	}
	if err := container.Provide(repository.NewTraceRepository); err != nil {
		return err
	}

	// 模型提供方
	if err := container.Provide(func(cfg *config.Config) knowledge.Embedder {
		emb := cfg.Knowledge.Embedding
		if emb.APIKey == "" {
			logger.Warn("嵌入模型未配置，向量检索不可用")
			return &knowledge.NoopEmbedder{}
		}
		return knowledge.NewOpenAIEmbedder(emb.APIKey, emb.BaseURL, emb.Model, emb.Dimensions)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(cfg *config.Config) knowledge.VisionProvider {
		vis := cfg.Knowledge.Vision
		if vis.APIKey == "" {
			return &knowledge.NoopVisionProvider{}
		}
		return knowledge.NewOpenAIVisionProvider(vis.APIKey, vis.BaseURL, vis.Model)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(cfg *config.Config) knowledge.AnswerGenerator {
		gen := cfg.Knowledge.Generator
		if gen.APIKey == "" {
			return &knowledge.NoopAnswerGenerator{}
		}
		return knowledge.NewOpenAIAnswerGenerator(gen.APIKey, gen.BaseURL, gen.Model, gen.MaxTokens, gen.Temperature)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(cfg *config.Config) knowledge.Reranker {
		rr := cfg.Search.Rerank
		if !rr.Enabled || rr.APIKey == "" {
			return &knowledge.NoopReranker{}
		}
		return knowledge.NewHTTPReranker(rr.Endpoint, rr.APIKey, rr.Model, time.Duration(rr.TimeoutSeconds)*time.Second)
	}); err != nil {
		return err
	}

	// 全文索引器
	if err := container.Provide(func(cfg *config.Config, db *gorm.DB) (knowledge.FulltextIndexer, error) {
		ft := cfg.Knowledge.Fulltext
		if ft.Provider == "elasticsearch" {
			es := ft.Elasticsearch
			indexer, err := knowledge.NewElasticsearchIndexer(es.Addresses, es.Username, es.Password, es.APIKey, es.IndexPrefix)
			if err != nil {
				return nil, err
			}
			logger.Info("使用Elasticsearch全文索引", zap.Strings("addresses", es.Addresses))
			return indexer, nil
		}
		return knowledge.NewPostgresIndexer(db), nil
	}); err != nil {
		return err
	}

	// 向量存储
	if err := container.Provide(func(cfg *config.Config, db *gorm.DB) knowledge.VectorStore {
		return knowledge.NewPgVectorStore(db, cfg.Knowledge.Embedding.Dimensions)
	}); err != nil {
		return err
	}

	// 混合检索引擎
	if err := container.Provide(func(cfg *config.Config, indexer knowledge.FulltextIndexer, store knowledge.VectorStore, embedder knowledge.Embedder, reranker knowledge.Reranker) *knowledge.HybridSearchEngine {
		engine := knowledge.NewHybridSearchEngine(indexer, store, embedder, reranker)
		if dims := cfg.Knowledge.Embedding.Dimensions; embedder.Ready() && embedder.Dimensions() != dims {
			logger.Warn("嵌入维度与配置不一致，向量检索可能失败",
				zap.Int("embedder_dimensions", embedder.Dimensions()),
				zap.Int("configured_dimensions", dims))
		}
		engine.SetWeights(cfg.Search.VectorWeight, cfg.Search.KeywordWeight)
		engine.SetLimits(cfg.Search.CandidateLimit, cfg.Search.FusedLimit)
		engine.SetMinScore(cfg.Search.MinScore)
		engine.SetRerankBounds(cfg.Search.Rerank.MaxCandidates, cfg.Search.Rerank.TopK)
		return engine
	}); err != nil {
		return err
	}

	// 服务
	if err := container.Provide(func(cfg *config.Config, cacheRepo repository.ImageCacheRepository, vision knowledge.VisionProvider, redisClient *redis.Client) *services.ImageService {
		return services.NewImageService(cacheRepo, vision, redisClient, cfg.Redis.TTL)
	}); err != nil {
		return err
	}

	if err := container.Provide(func(cfg *config.Config, docRepo repository.DocumentRepository, indexer knowledge.FulltextIndexer, embedder knowledge.Embedder, imageService *services.ImageService) *services.IngestionService {
		parser := knowledge.NewMarkdownParser(cfg.Knowledge.DocsBaseURL, cfg.Knowledge.CorpusPath)
		splitter := knowledge.NewSectionSplitter(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
		return services.NewIngestionService(docRepo, indexer, embedder, parser, splitter, imageService, cfg.Knowledge.CorpusPath)
	}); err != nil {
		return err
	}

	if err := container.Provide(services.NewTraceService); err != nil {
		return err
	}

	if err := container.Provide(func(cfg *config.Config, engine *knowledge.HybridSearchEngine, generator knowledge.AnswerGenerator, traceService *services.TraceService) *services.QueryService {
		return services.NewQueryService(engine, generator, traceService, cfg.Search.Confidence.LowThreshold, cfg.Search.Confidence.HighThreshold)
	}); err != nil {
		return err
	}

	return nil
}
