package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"gwi.com/support-copilot/internal/llm"
	"gwi.com/support-copilot/internal/vectorstore"
)

const (
	ToneFrustrated = "frustrated"
	ToneUrgent     = "urgent"
	ToneCalm       = "calm"
	ToneConfused   = "confused"
	ToneNeutral    = "neutral"

	FallbackModel = "fallback"

	maxGenerationAttempts = 2

	systemPrompt = `You are an expert customer support agent. Your role is to draft helpful, accurate, and professional responses to customer issues.

KEY INSTRUCTIONS:
1. Use the provided knowledge base context to ensure accuracy
2. Always maintain an empathetic and professional tone
3. If the context doesn't contain the answer, be honest and offer to escalate
4. Structure responses clearly with proper formatting
5. Reference specific policies or solutions when available
6. Always thank the customer for their patience

CRITICAL: Do not make up information outside the provided context.`

	toneSystemPrompt = "Analyze the emotional tone of this customer message. " +
		"Respond with ONLY one word: 'frustrated', 'urgent', 'calm', 'confused', or 'neutral'."

	fallbackText = "I apologize, but I'm experiencing technical difficulties. Please try again in a moment. " +
		"For immediate assistance, you can refer to our knowledge base or contact support directly.\n\nError: %s"
)

// DetectedTones lists the customer tones AnalyzeTone can report.
var DetectedTones = []string{ToneFrustrated, ToneUrgent, ToneCalm, ToneConfused, ToneNeutral}

type GeneratedResponse struct {
	Response    string   `json:"response"`
	Sources     []string `json:"sources"`
	ContextUsed int      `json:"context_used"`
	ModelUsed   string   `json:"model_used"`
}

type ResponseGenerator struct {
	llm  llm.Provider
	log  *zap.Logger
	wait func(ctx context.Context, d time.Duration) error
}

func NewResponseGenerator(provider llm.Provider, log *zap.Logger) *ResponseGenerator {
	log.Info("Response generator initialized",
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Models().Chat))
	return &ResponseGenerator{llm: provider, log: log, wait: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AnalyzeTone classifies the customer's emotional tone. Any failure or
// unexpected answer yields ToneNeutral.
func (g *ResponseGenerator) AnalyzeTone(ctx context.Context, message string) string {
	g.log.Debug("Analyzing tone", zap.String("message", truncate(message, 50)))

	out, err := g.llm.Complete(ctx, llm.CompletionRequest{
		Model:       g.llm.Models().Tone,
		System:      toneSystemPrompt,
		User:        message,
		Temperature: 0.1,
		MaxTokens:   10,
	})
	if err != nil {
		g.log.Warn("Tone analysis failed, using neutral", zap.Error(err))
		return ToneNeutral
	}

	tone := strings.ToLower(strings.TrimSpace(out))
	if !lo.Contains(DetectedTones, tone) {
		tone = ToneNeutral
	}
	g.log.Debug("Detected tone", zap.String("tone", tone))
	return tone
}

// GenerateResponse drafts a reply to issue grounded on chunks. tone is the
// requested response tone; detectedTone, when known, describes the customer.
func (g *ResponseGenerator) GenerateResponse(ctx context.Context, issue string, chunks []vectorstore.Match, tone, detectedTone string) (*GeneratedResponse, error) {
	contextText := strings.Join(lo.Map(chunks, func(c vectorstore.Match, _ int) string { return c.Text }), "\n\n")

	g.log.Info("Generating response",
		zap.String("issue", truncate(issue, 100)),
		zap.Int("context_chunks", len(chunks)))

	model := g.llm.Models().Chat
	text, err := g.llm.Complete(ctx, llm.CompletionRequest{
		Model:            model,
		System:           systemPrompt,
		User:             buildUserPrompt(issue, contextText, tone, detectedTone),
		Temperature:      0.7,
		MaxTokens:        500,
		PresencePenalty:  0.1,
		FrequencyPenalty: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("response generation failed: %w", err)
	}

	return &GeneratedResponse{
		Response: text,
		Sources: lo.Map(chunks, func(c vectorstore.Match, _ int) string {
			return fmt.Sprintf("Knowledge base chunk %d (score: %.2f)", c.ChunkID, c.Score)
		}),
		ContextUsed: len(chunks),
		ModelUsed:   model,
	}, nil
}

// GenerateResponseWithFallback retries rate-limit and connection failures and
// never fails: when every attempt errors it returns an apology draft whose
// ModelUsed is FallbackModel.
func (g *ResponseGenerator) GenerateResponseWithFallback(ctx context.Context, issue string, chunks []vectorstore.Match, tone, detectedTone string) *GeneratedResponse {
	var lastErr error

attempts:
	for attempt := 0; attempt < maxGenerationAttempts; attempt++ {
		g.log.Debug("Generation attempt", zap.Int("attempt", attempt+1), zap.Int("max", maxGenerationAttempts))

		resp, err := g.GenerateResponse(ctx, issue, chunks, tone, detectedTone)
		if err == nil {
			return resp
		}
		lastErr = err
		last := attempt == maxGenerationAttempts-1

		var delay time.Duration
		switch {
		case errors.Is(err, llm.ErrRateLimited):
			g.log.Warn("Rate limit hit", zap.Int("attempt", attempt+1), zap.Error(err))
			delay = time.Duration(1<<attempt) * time.Second
		case errors.Is(err, llm.ErrConnection):
			g.log.Warn("Connection error", zap.Int("attempt", attempt+1), zap.Error(err))
			delay = time.Second
		default:
			g.log.Error("Unexpected generation error", zap.Int("attempt", attempt+1), zap.Error(err))
			break attempts
		}
		if last {
			break
		}
		g.log.Info("Waiting before retry", zap.Duration("delay", delay))
		if err := g.wait(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	g.log.Error("All generation attempts failed, using fallback response", zap.Error(lastErr))
	return &GeneratedResponse{
		Response:    fmt.Sprintf(fallbackText, lastErr),
		Sources:     []string{},
		ContextUsed: 0,
		ModelUsed:   FallbackModel,
	}
}

func buildUserPrompt(issue, contextText, tone, detectedTone string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nCUSTOMER ISSUE:\n%s\n\nRELEVANT KNOWLEDGE BASE CONTEXT:\n%s\n\nTONE REQUIREMENT: %s\n", issue, contextText, tone)
	if detectedTone != "" && detectedTone != ToneNeutral {
		fmt.Fprintf(&b, "DETECTED CUSTOMER TONE: %s\n", detectedTone)
	}
	b.WriteString(`
Please draft a response that:
- Acknowledges the specific issue
- Provides solutions based on the knowledge base
- Shows empathy for their situation
- Maintains professional brand voice
- Includes clear next steps if needed

DRAFT YOUR RESPONSE:`)
	return b.String()
}
