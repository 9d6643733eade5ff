package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Document 语料文档
type Document struct {
	DocumentID  uint      `gorm:"primaryKey;column:document_id" json:"document_id"`
	Title       string    `gorm:"size:500;not null" json:"title"`
	FilePath    string    `gorm:"size:500;not null;uniqueIndex" json:"file_path"`
	SourceURL   string    `gorm:"size:500" json:"source_url,omitempty"`
	Breadcrumb  string    `gorm:"type:json" json:"breadcrumb,omitempty"`
	ContentHash string    `gorm:"size:64;not null" json:"content_hash"`
	IndexedAt   time.Time `gorm:"column:indexed_at;autoCreateTime" json:"indexed_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// 关系
	Sections []DocumentSection `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

func (Document) TableName() string {
	return "documents"
}

// DocumentSection 文档分节，嵌入与全文索引的最小检索单元
type DocumentSection struct {
	SectionID    uint            `gorm:"primaryKey;column:section_id" json:"section_id"`
	DocumentID   uint            `gorm:"column:document_id;not null;index;uniqueIndex:idx_doc_section_order,priority:1" json:"document_id"`
	Title        string          `gorm:"size:500" json:"title,omitempty"`
	Content      string          `gorm:"type:text;not null" json:"content"`
	Embedding    pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	ContentTSV   string          `gorm:"type:tsvector;column:content_tsv;->" json:"-"`
	SectionOrder int             `gorm:"column:section_order;not null;uniqueIndex:idx_doc_section_order,priority:2" json:"section_order"`
	HasCode      bool            `gorm:"column:has_code;default:false" json:"has_code"`
	HasImages    bool            `gorm:"column:has_images;default:false" json:"has_images"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	// 关系
	Images []DocumentImage `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE"`
}

func (DocumentSection) TableName() string {
	return "document_sections"
}

// ImageCacheEntry 图片描述缓存，按内容哈希去重，一次写入不再修改
type ImageCacheEntry struct {
	ImageHash    string    `gorm:"primaryKey;column:image_hash;size:64" json:"image_hash"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	ModelVersion string    `gorm:"column:model_version;size:100" json:"model_version"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ImageCacheEntry) TableName() string {
	return "image_cache"
}

// DocumentImage 分节内的图片引用，多个引用可指向同一缓存条目
type DocumentImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SectionID uint      `gorm:"column:section_id;not null;index" json:"section_id"`
	ImageHash string    `gorm:"column:image_hash;size:64;not null;index" json:"image_hash"`
	ImagePath string    `gorm:"column:image_path;size:500;not null" json:"image_path"`
	AltText   string    `gorm:"column:alt_text;size:500" json:"alt_text,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (DocumentImage) TableName() string {
	return "document_images"
}
