package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildHighlight_MarksMatch(t *testing.T) {
	highlight := buildHighlight("configure the retry policy before deploy", "retry policy")
	assert.Equal(t, "configure the <mark>retry policy</mark> before deploy", highlight)
}

func TestBuildHighlight_CaseInsensitive(t *testing.T) {
	highlight := buildHighlight("Retry Policy settings", "retry policy")
	assert.Equal(t, "<mark>Retry Policy</mark> settings", highlight)
}

func TestBuildHighlight_NoMatchReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", buildHighlight("unrelated content", "missing"))
	assert.Equal(t, "", buildHighlight("some content", "   "))
}

func TestBuildHighlight_MultibyteFoldingKeepsOffsets(t *testing.T) {
	// 小写化会改变部分码点的字节长度，命中位置不能错位
	highlight := buildHighlight("ȺȺȺ match", "match")
	assert.Equal(t, "ȺȺȺ <mark>match</mark>", highlight)

	highlight = buildHighlight("İİİ match", "match")
	assert.Equal(t, "İİİ <mark>match</mark>", highlight)
}

func TestBuildHighlight_TruncatesLongContent(t *testing.T) {
	content := strings.Repeat("a", 100) + "needle" + strings.Repeat("b", 100)
	highlight := buildHighlight(content, "needle")
	assert.Equal(t, strings.Repeat("a", 40)+"<mark>needle</mark>"+strings.Repeat("b", 40), highlight)
}
