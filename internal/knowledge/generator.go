package knowledge

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// GeneratedAnswer 生成的回答及其元信息
type GeneratedAnswer struct {
	Text             string
	GenerationTimeMs int
	TokenCount       int
}

// AnswerGenerator 回答生成接口。对本核心而言生成是黑盒：
// 输入问题与排序后的上下文，输出带引用标记的文本。
type AnswerGenerator interface {
	Generate(ctx context.Context, question, context string) (*GeneratedAnswer, error)
	ModelID() string
	Ready() bool
}

// NoopAnswerGenerator 默认占位实现
type NoopAnswerGenerator struct{}

func (n *NoopAnswerGenerator) Generate(ctx context.Context, question, context string) (*GeneratedAnswer, error) {
	return nil, errors.New("answer generator not configured")
}

func (n *NoopAnswerGenerator) ModelID() string { return "" }

func (n *NoopAnswerGenerator) Ready() bool { return false }

const answerSystemPrompt = "You answer questions strictly from the provided documentation excerpts. " +
	"Cite sources inline with [n] markers matching the excerpt numbering. " +
	"If the excerpts do not contain the answer, say so."

// OpenAIAnswerGenerator 使用OpenAI Chat API生成回答
type OpenAIAnswerGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIAnswerGenerator 创建回答生成器
func NewOpenAIAnswerGenerator(apiKey, baseURL, model string, maxTokens int, temperature float64) AnswerGenerator {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &NoopAnswerGenerator{}
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	return &OpenAIAnswerGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
	}
}

func (g *OpenAIAnswerGenerator) Generate(ctx context.Context, question, contextText string) (*GeneratedAnswer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errors.New("question is empty")
	}
	if g.client == nil {
		return nil, errors.New("openai client not initialized")
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: contextText + "\n\nQuestion: " + question},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("generation response empty")
	}

	return &GeneratedAnswer{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		GenerationTimeMs: int(time.Since(start).Milliseconds()),
		TokenCount:       resp.Usage.CompletionTokens,
	}, nil
}

func (g *OpenAIAnswerGenerator) ModelID() string { return g.model }

func (g *OpenAIAnswerGenerator) Ready() bool { return g.client != nil }
