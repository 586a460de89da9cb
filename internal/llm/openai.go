package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var defaultOpenAIModels = Models{
	Chat:      openai.GPT4,
	Tone:      openai.GPT3Dot5Turbo,
	Embedding: string(openai.SmallEmbedding3),
}

type OpenAI struct {
	client *openai.Client
	models Models
}

// NewOpenAI creates an OpenAI-backed provider. baseURL overrides the API
// endpoint and may be empty.
func NewOpenAI(apiKey, baseURL string, models Models) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		models: models.withDefaults(defaultOpenAIModels),
	}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Models() Models { return p.models }

func (p *OpenAI) Close() error { return nil }

func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.models.Embedding),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding request failed: %w", classifyOpenAI(err))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data received from openai")
	}
	return resp.Data[0].Embedding, nil
}

func (p *OpenAI) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.models.Chat
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            model,
		Messages:         messages,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", classifyOpenAI(err))
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func classifyOpenAI(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return classify(ErrRateLimited, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return classify(ErrRateLimited, err)
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return classify(ErrConnection, err)
	}
	return err
}
