package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// rerankRequest 重排序API请求体（Cohere兼容格式）
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

// rerankResponse 重排序API响应体
type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

const defaultRerankEndpoint = "https://api.cohere.com/v2/rerank"

// HTTPReranker 调用交叉编码重排序API的实现
type HTTPReranker struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewHTTPReranker 创建HTTP重排序器
func NewHTTPReranker(endpoint, apiKey, model string, timeout time.Duration) Reranker {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &NoopReranker{}
	}
	if endpoint == "" {
		endpoint = defaultRerankEndpoint
	}
	if model == "" {
		model = "rerank-v3.5"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &HTTPReranker{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []RerankDocument) ([]RerankResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query cannot be empty")
	}
	if len(documents) == 0 {
		return nil, errors.New("documents cannot be empty")
	}

	docContents := make([]string, len(documents))
	for i, doc := range documents {
		docContents[i] = doc.Content
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: docContents,
		TopN:      len(docContents),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank api status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("rerank response decode: %w", err)
	}
	if len(parsed.Results) == 0 {
		return nil, errors.New("rerank response empty")
	}

	// 构建结果映射（index -> score）
	scoreMap := make(map[int]float64, len(parsed.Results))
	for _, result := range parsed.Results {
		scoreMap[result.Index] = result.RelevanceScore
	}

	results := make([]RerankResult, 0, len(documents))
	for i, doc := range documents {
		results = append(results, RerankResult{
			Document: doc,
			Score:    scoreMap[i],
		})
	}

	sortRerankResults(results)
	return results, nil
}

func (r *HTTPReranker) ModelID() string { return r.model }

func (r *HTTPReranker) Ready() bool { return r.client != nil && r.apiKey != "" }
