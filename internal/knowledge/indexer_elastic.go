package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchIndexer 基于ES的全文索引实现，作为tsvector的可选替代
type ElasticsearchIndexer struct {
	client    *elasticsearch.Client
	indexName string
	created   bool
	mu        sync.Mutex
}

// NewElasticsearchIndexer 创建ES索引器
func NewElasticsearchIndexer(addresses []string, username, password, apiKey, indexPrefix string) (FulltextIndexer, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch addresses are empty")
	}

	cfg := elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
		APIKey:    apiKey,
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	if indexPrefix == "" {
		indexPrefix = "document_sections"
	}

	return &ElasticsearchIndexer{
		client:    client,
		indexName: indexPrefix,
	}, nil
}

func (e *ElasticsearchIndexer) ensureIndex(ctx context.Context) error {
	e.mu.Lock()
	if e.created {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	req := esapi.IndicesExistsRequest{Index: []string{e.indexName}}
	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == 200 {
		e.mu.Lock()
		e.created = true
		e.mu.Unlock()
		return nil
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"section_id":     map[string]interface{}{"type": "keyword"},
				"document_id":    map[string]interface{}{"type": "keyword"},
				"section_title":  map[string]interface{}{"type": "text"},
				"content":        map[string]interface{}{"type": "text", "index_options": "offsets"},
				"section_order":  map[string]interface{}{"type": "integer"},
				"doc_title":      map[string]interface{}{"type": "keyword"},
				"url":            map[string]interface{}{"type": "keyword"},
				"doc_updated_at": map[string]interface{}{"type": "date"},
			},
		},
	}

	body, _ := json.Marshal(mapping)
	createReq := esapi.IndicesCreateRequest{
		Index: e.indexName,
		Body:  bytes.NewReader(body),
	}
	createResp, err := createReq.Do(ctx, e.client)
	if err != nil {
		return err
	}
	defer createResp.Body.Close()

	if createResp.IsError() {
		return fmt.Errorf("create index error: %s", createResp.String())
	}

	e.mu.Lock()
	e.created = true
	e.mu.Unlock()
	return nil
}

func (e *ElasticsearchIndexer) IndexSection(ctx context.Context, record SectionRecord) error {
	if e.client == nil {
		return nil
	}
	if err := e.ensureIndex(ctx); err != nil {
		return err
	}

	doc := map[string]interface{}{
		"section_id":     record.SectionID,
		"document_id":    record.DocumentID,
		"section_title":  record.Title,
		"content":        record.Content,
		"section_order":  record.SectionOrder,
		"doc_title":      record.DocTitle,
		"url":            record.URL,
		"doc_updated_at": record.CreatedAt,
	}

	payload, _ := json.Marshal(doc)
	req := esapi.IndexRequest{
		Index:      e.indexName,
		DocumentID: fmt.Sprintf("%d", record.SectionID),
		Body:       bytes.NewReader(payload),
		Refresh:    "true",
	}

	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return fmt.Errorf("index section error: %s", resp.String())
	}
	return nil
}

func (e *ElasticsearchIndexer) RemoveDocument(ctx context.Context, documentID uint) error {
	if e.client == nil {
		return nil
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"document_id": documentID,
			},
		},
	}

	body, _ := json.Marshal(query)
	req := esapi.DeleteByQueryRequest{
		Index: []string{e.indexName},
		Body:  bytes.NewReader(body),
	}

	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return fmt.Errorf("delete document error: %s", resp.String())
	}
	return nil
}

func (e *ElasticsearchIndexer) Search(ctx context.Context, req FulltextSearchRequest) ([]SearchMatch, error) {
	if e.client == nil {
		return nil, nil
	}
	if req.Limit <= 0 {
		req.Limit = 25
	}
	if err := e.ensureIndex(ctx); err != nil {
		return nil, err
	}

	// match_phrase 精确短语优先，match 模糊匹配兜底
	body := map[string]interface{}{
		"size": req.Limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{
						"match_phrase": map[string]interface{}{
							"content": map[string]interface{}{
								"query": req.Query,
								"boost": 3.0,
							},
						},
					},
					map[string]interface{}{
						"match": map[string]interface{}{
							"content": map[string]interface{}{
								"query":    req.Query,
								"operator": "or",
								"boost":    1.0,
							},
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				"content": map[string]interface{}{
					"fragment_size":       150,
					"number_of_fragments": 1,
					"pre_tags":            []string{"<mark>"},
					"post_tags":           []string{"</mark>"},
				},
			},
		},
	}

	payload, _ := json.Marshal(body)
	searchReq := esapi.SearchRequest{
		Index: []string{e.indexName},
		Body:  bytes.NewReader(payload),
	}

	resp, err := searchReq.Do(ctx, e.client)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, fmt.Errorf("search error: %s", resp.String())
	}

	var result esSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	matches := make([]SearchMatch, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		var highlight string
		if fragments := hit.Highlight["content"]; len(fragments) > 0 {
			highlight = fragments[0]
		}

		matches = append(matches, SearchMatch{
			SectionID:    hit.Source.SectionID,
			DocumentID:   hit.Source.DocumentID,
			SectionTitle: hit.Source.SectionTitle,
			Content:      hit.Source.Content,
			Score:        hit.Score,
			DocTitle:     hit.Source.DocTitle,
			URL:          hit.Source.URL,
			DocUpdatedAt: hit.Source.DocUpdatedAt,
			Highlight:    highlight,
		})
	}

	return matches, nil
}

// esSearchResponse 检索响应，_source结构与IndexSection写入的文档一致
type esSearchResponse struct {
	Hits struct {
		Hits []esSearchHit `json:"hits"`
	} `json:"hits"`
}

type esSearchHit struct {
	Score     float64             `json:"_score"`
	Source    esSectionSource     `json:"_source"`
	Highlight map[string][]string `json:"highlight"`
}

type esSectionSource struct {
	SectionID    uint      `json:"section_id"`
	DocumentID   uint      `json:"document_id"`
	SectionTitle string    `json:"section_title"`
	Content      string    `json:"content"`
	DocTitle     string    `json:"doc_title"`
	URL          string    `json:"url"`
	DocUpdatedAt time.Time `json:"doc_updated_at"`
}

func (e *ElasticsearchIndexer) Ready() bool {
	return e.client != nil
}
