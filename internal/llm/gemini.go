package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var defaultGeminiModels = Models{
	Chat:      "gemini-1.5-flash-latest",
	Tone:      "gemini-1.5-flash-latest",
	Embedding: "text-embedding-004",
}

type Gemini struct {
	client *genai.Client
	models Models
	log    *zap.Logger
}

func NewGemini(ctx context.Context, apiKey string, models Models, log *zap.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{
		client: client,
		models: models.withDefaults(defaultGeminiModels),
		log:    log,
	}, nil
}

func (p *Gemini) Name() string { return "gemini" }

func (p *Gemini) Models() Models { return p.models }

func (p *Gemini) Close() error {
	if p.client == nil {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("closing GenAI client: %w", err)
	}
	p.log.Debug("GenAI client closed")
	return nil
}

func (p *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	em := p.client.EmbeddingModel(p.models.Embedding)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", classifyGemini(err))
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (p *Gemini) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	name := req.Model
	if name == "" {
		name = p.models.Chat
	}
	model := p.client.GenerativeModel(name)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if req.Temperature > 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", classifyGemini(err))
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			p.log.Debug("Skipping non-text Gemini response part", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func classifyGemini(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return classify(ErrRateLimited, err)
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return classify(ErrConnection, err)
	}
	return err
}
