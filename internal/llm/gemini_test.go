package llm

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGeminiLive(t *testing.T) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	p, err := NewGemini(ctx, key, Models{}, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	vec, err := p.Embed(ctx, "customer cannot log in")
	require.NoError(t, err)
	assert.NotEmpty(t, vec)

	out, err := p.Complete(ctx, CompletionRequest{
		System:    "Respond with ONLY one word: 'frustrated', 'urgent', 'calm', 'confused', or 'neutral'.",
		User:      "This is the third time I'm writing and nobody answers!",
		MaxTokens: 10,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
