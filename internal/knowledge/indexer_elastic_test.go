package knowledge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEsSearchResponse_LargeIDsDecodeExactly(t *testing.T) {
	payload := `{
		"hits": {
			"hits": [{
				"_score": 1.5,
				"_source": {
					"section_id": 9000001,
					"document_id": 1000000,
					"section_title": "Setup",
					"content": "install the agent",
					"doc_title": "Guide",
					"url": "https://docs.example.com/guide.html",
					"doc_updated_at": "2026-01-02T03:04:05Z"
				},
				"highlight": {"content": ["install the <mark>agent</mark>"]}
			}]
		}
	}`

	var result esSearchResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &result))
	require.Len(t, result.Hits.Hits, 1)

	hit := result.Hits.Hits[0]
	assert.Equal(t, uint(9000001), hit.Source.SectionID)
	assert.Equal(t, uint(1000000), hit.Source.DocumentID)
	assert.Equal(t, 1.5, hit.Score)
	assert.Equal(t, "install the <mark>agent</mark>", hit.Highlight["content"][0])
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), hit.Source.DocUpdatedAt.UTC())
}
