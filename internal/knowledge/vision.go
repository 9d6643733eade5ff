package knowledge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// VisionProvider 图片理解接口，为图片生成文字描述
type VisionProvider interface {
	Describe(ctx context.Context, imageBytes []byte) (string, error)
	ModelID() string
	Ready() bool
}

// NoopVisionProvider 默认占位实现
type NoopVisionProvider struct{}

func (n *NoopVisionProvider) Describe(ctx context.Context, imageBytes []byte) (string, error) {
	return "", errors.New("vision provider not configured")
}

func (n *NoopVisionProvider) ModelID() string { return "" }

func (n *NoopVisionProvider) Ready() bool { return false }

const visionPrompt = "Describe this image concisely for a documentation search index. " +
	"Mention diagrams, UI elements, code and any visible text."

// OpenAIVisionProvider 使用OpenAI多模态Chat API生成图片描述
type OpenAIVisionProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIVisionProvider 创建视觉模型提供方
func NewOpenAIVisionProvider(apiKey, baseURL, model string) VisionProvider {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &NoopVisionProvider{}
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	return &OpenAIVisionProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

func (p *OpenAIVisionProvider) Describe(ctx context.Context, imageBytes []byte) (string, error) {
	if len(imageBytes) == 0 {
		return "", errors.New("image bytes are empty")
	}
	if p.client == nil {
		return "", errors.New("openai client not initialized")
	}

	mimeType := http.DetectContentType(imageBytes)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageBytes))

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("vision response empty")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIVisionProvider) ModelID() string { return p.model }

func (p *OpenAIVisionProvider) Ready() bool { return p.client != nil }
