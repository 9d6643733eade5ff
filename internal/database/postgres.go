package database

import (
	"fmt"

	"github.com/docshub/rag-go/internal/config"
	"github.com/docshub/rag-go/internal/logger"
	"github.com/docshub/rag-go/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB() (*gorm.DB, error) {
	cfg := config.AppConfig
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	logMode := gormlogger.Warn
	if cfg.Server.Env == "development" {
		logMode = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层的sql.DB设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if err := autoMigrate(db); err != nil {
		logger.Warn(fmt.Sprintf("database migration warning: %v", err))
	}

	DB = db
	logger.Info("database connected")
	return db, nil
}

// autoMigrate 迁移检索与追踪相关表（按依赖顺序）。
// vector/tsvector列类型依赖pgvector扩展，正式环境用cmd/migrate执行。
func autoMigrate(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("pgvector extension: %w", err)
	}

	return db.AutoMigrate(
		&models.Document{},
		&models.DocumentSection{},
		&models.ImageCacheEntry{},
		&models.DocumentImage{},
		&models.QueryTrace{},
		&models.TraceCitation{},
		&models.TraceSectionSnapshot{},
		&models.TraceAnswer{},
	)
}
