package models

import "time"

// QueryTrace 查询追踪主记录，写入后不可变更
type QueryTrace struct {
	TraceID        string    `gorm:"primaryKey;column:trace_id;size:36" json:"trace_id"`
	QueryText      string    `gorm:"type:text;not null" json:"query_text"`
	UserID         string    `gorm:"column:user_id;size:200" json:"user_id,omitempty"`
	Confidence     string    `gorm:"size:20;not null" json:"confidence"`
	EmbeddingModel string    `gorm:"column:embedding_model;size:200" json:"embedding_model,omitempty"`
	RerankerModel  string    `gorm:"column:reranker_model;size:200" json:"reranker_model,omitempty"`
	LLMModel       string    `gorm:"column:llm_model;size:200" json:"llm_model,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	// 关系
	Citations []TraceCitation        `gorm:"foreignKey:TraceID;constraint:OnDelete:CASCADE"`
	Snapshots []TraceSectionSnapshot `gorm:"foreignKey:TraceID;constraint:OnDelete:CASCADE"`
	Answer    *TraceAnswer           `gorm:"foreignKey:TraceID;constraint:OnDelete:CASCADE"`
}

func (QueryTrace) TableName() string {
	return "query_traces"
}

// TraceCitation 追踪引用，citation_number 在单条追踪内从1起连续编号
type TraceCitation struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	TraceID        string  `gorm:"column:trace_id;size:36;not null;index;uniqueIndex:idx_trace_citation,priority:1" json:"trace_id"`
	SectionID      uint    `gorm:"column:section_id;not null" json:"section_id"`
	CitationNumber int     `gorm:"column:citation_number;not null;uniqueIndex:idx_trace_citation,priority:2" json:"citation_number"`
	RelevanceScore float64 `gorm:"column:relevance_score" json:"relevance_score"`
	DocTitle       string  `gorm:"column:doc_title;size:500" json:"doc_title,omitempty"`
	SectionTitle   string  `gorm:"column:section_title;size:500" json:"section_title,omitempty"`
	URL            string  `gorm:"size:500" json:"url,omitempty"`
}

func (TraceCitation) TableName() string {
	return "trace_citations"
}

// TraceSectionSnapshot 引用分节在查询时刻的内容快照。
// 分节会随重新摄取被替换，快照保证追踪记录永久可复现。
type TraceSectionSnapshot struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TraceID         string    `gorm:"column:trace_id;size:36;not null;index" json:"trace_id"`
	SectionID       uint      `gorm:"column:section_id;not null" json:"section_id"`
	ContentSnapshot string    `gorm:"type:text;not null;column:content_snapshot" json:"content_snapshot"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (TraceSectionSnapshot) TableName() string {
	return "trace_section_snapshots"
}

// TraceAnswer 生成的回答记录，与追踪一对一
type TraceAnswer struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	TraceID          string    `gorm:"column:trace_id;size:36;not null;uniqueIndex" json:"trace_id"`
	AnswerText       string    `gorm:"type:text;not null;column:answer_text" json:"answer_text"`
	GenerationTimeMs int       `gorm:"column:generation_time_ms" json:"generation_time_ms"`
	TokenCount       int       `gorm:"column:token_count" json:"token_count"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (TraceAnswer) TableName() string {
	return "trace_answers"
}
