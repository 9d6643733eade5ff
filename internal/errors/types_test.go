package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineError_WrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewIndexingFailed("guide.md", cause)

	assert.Equal(t, KindIndexingFailed, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "guide.md")
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestKindOf_WrappedPipelineError(t *testing.T) {
	inner := NewTraceWriteFailed("abc-123", errors.New("db down"))
	wrapped := fmt.Errorf("query failed: %w", inner)

	assert.True(t, IsTraceWriteFailed(wrapped))
	assert.Equal(t, KindTraceWriteFailed, KindOf(wrapped))
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsNoEvidence(NewNoEvidenceFound("query")))
	assert.True(t, IsIndexingFailed(NewIndexingFailed("a.md", nil)))
	assert.True(t, IsRerankDegraded(NewRerankDegraded(errors.New("down"))))
	assert.False(t, IsNoEvidence(errors.New("other")))
}
