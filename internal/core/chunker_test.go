package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmartChunkSections(t *testing.T) {
	text := `[Login Issues]
Users who cannot log in should reset their password.   The reset email arrives within 5 minutes!

[FAQ] Refunds are processed in 5-7 business days.`

	got := SmartChunk(text, DefaultChunkSize)

	assert.Equal(t, []string{
		"Users who cannot log in should reset their password. The reset email arrives within 5 minutes!",
		"Refunds are processed in 5-7 business days.",
	}, got)
}

func TestSmartChunkNeverEmitsSectionHeaders(t *testing.T) {
	got := SmartChunk("[Two-Factor Authentication]\nTwo-factor authentication can be enabled from Settings.", DefaultChunkSize)
	assert.Equal(t, []string{"Two-factor authentication can be enabled from Settings."}, got)

	assert.Nil(t, SmartChunk("[Account Access] [Billing and Refunds]", DefaultChunkSize))
}

func TestSmartChunkCountsCharactersNotBytes(t *testing.T) {
	got := SmartChunk("Ça coûte où? Été déjà passé.", 27)
	assert.Equal(t, []string{"Ça coûte où? Été déjà passé."}, got)

	assert.Empty(t, SmartChunk("ÀÉÎÕÜàéîõü", DefaultChunkSize), "ten characters is too short even at twenty bytes")
	assert.Equal(t, []string{"ÀÉÎÕÜàéîõüÿ"}, SmartChunk("ÀÉÎÕÜàéîõüÿ", DefaultChunkSize))
}

func TestSmartChunkPacksSentences(t *testing.T) {
	got := SmartChunk("One two three. Four five six. Seven eight nine.", 30)
	assert.Equal(t, []string{"One two three. Four five six.", "Seven eight nine."}, got)
}

func TestSmartChunkLongSentenceStaysWhole(t *testing.T) {
	long := strings.Repeat("word ", 30) + "end."
	got := SmartChunk("Short intro here. "+long, 40)
	assert.Equal(t, []string{"Short intro here.", strings.TrimSpace(long)}, got)
}

func TestSmartChunkDropsTinyChunks(t *testing.T) {
	assert.Empty(t, SmartChunk("Hi. Ok.", 3))
	assert.Nil(t, SmartChunk("   \n\t ", DefaultChunkSize))
}

func TestSmartChunkQuestionAndExclamation(t *testing.T) {
	got := SmartChunk("Can I change my plan later? Yes, at any time! Contact billing first.", 20)
	assert.Equal(t, []string{"Can I change my plan later?", "Yes, at any time!", "Contact billing first."}, got)
}
