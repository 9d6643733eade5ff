package errors

import (
	"errors"
	"fmt"
)

// ErrorKind 错误类别
type ErrorKind string

// 预定义错误类别
const (
	// KindIndexingFailed 文档摄取失败（嵌入或存储错误），整个文档回滚
	KindIndexingFailed ErrorKind = "INDEXING_FAILED"
	// KindRetrievalUnavailable 检索层不可用（存储/向量/全文算子失败），查询快速失败
	KindRetrievalUnavailable ErrorKind = "RETRIEVAL_UNAVAILABLE"
	// KindRerankDegraded 重排序失败，降级为融合排序，非致命
	KindRerankDegraded ErrorKind = "RERANK_DEGRADED"
	// KindNoEvidenceFound 未找到证据，属于合法的空结果而非故障
	KindNoEvidenceFound ErrorKind = "NO_EVIDENCE_FOUND"
	// KindTraceWriteFailed 追踪写入失败，未留痕的回答不允许返回
	KindTraceWriteFailed ErrorKind = "TRACE_WRITE_FAILED"
	// KindInvalidInput 入参无效
	KindInvalidInput ErrorKind = "INVALID_INPUT"
	// KindNotFound 资源不存在
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindInternal 内部错误
	KindInternal ErrorKind = "INTERNAL"
)

// PipelineError 管线错误结构体，携带类别与出错实体标识
type PipelineError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Entity  string    `json:"entity,omitempty"`
	Cause   error     `json:"-"`
}

// Error 实现error接口
func (e *PipelineError) Error() string {
	msg := e.Message
	if e.Entity != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Entity)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap 返回底层错误
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithCause 添加错误原因
func (e *PipelineError) WithCause(cause error) *PipelineError {
	e.Cause = cause
	return e
}

// New 创建管线错误
func New(kind ErrorKind, message string) *PipelineError {
	return &PipelineError{Kind: kind, Message: message}
}

// NewIndexingFailed 创建摄取失败错误，entity为文档定位符
func NewIndexingFailed(locator string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindIndexingFailed,
		Message: "document ingestion failed",
		Entity:  locator,
		Cause:   cause,
	}
}

// NewRetrievalUnavailable 创建检索不可用错误
func NewRetrievalUnavailable(cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindRetrievalUnavailable,
		Message: "retrieval backend unavailable",
		Cause:   cause,
	}
}

// NewRerankDegraded 创建重排序降级错误
func NewRerankDegraded(cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindRerankDegraded,
		Message: "reranker unavailable, fused order retained",
		Cause:   cause,
	}
}

// NewNoEvidenceFound 创建无证据结果
func NewNoEvidenceFound(query string) *PipelineError {
	return &PipelineError{
		Kind:    KindNoEvidenceFound,
		Message: "no evidence found for query",
		Entity:  query,
	}
}

// NewTraceWriteFailed 创建追踪写入失败错误，entity为trace标识
func NewTraceWriteFailed(traceID string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindTraceWriteFailed,
		Message: "trace write failed",
		Entity:  traceID,
		Cause:   cause,
	}
}

// KindOf 提取错误类别，非管线错误归为 KindInternal
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// IsKind 检查错误是否属于指定类别
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsNoEvidence 检查是否为无证据结果
func IsNoEvidence(err error) bool {
	return IsKind(err, KindNoEvidenceFound)
}

// IsIndexingFailed 检查是否为摄取失败
func IsIndexingFailed(err error) bool {
	return IsKind(err, KindIndexingFailed)
}

// IsRerankDegraded 检查是否为重排序降级
func IsRerankDegraded(err error) bool {
	return IsKind(err, KindRerankDegraded)
}

// IsTraceWriteFailed 检查是否为追踪写入失败
func IsTraceWriteFailed(err error) bool {
	return IsKind(err, KindTraceWriteFailed)
}
