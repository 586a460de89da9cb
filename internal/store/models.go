package store

import "time"

type Agent struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

// Draft is one generated reply together with the inputs that produced it.
type Draft struct {
	ID               string    `json:"id"` // UUID
	AgentID          int64     `json:"agent_id"`
	Issue            string    `json:"issue"`
	IssuePreview     string    `json:"issue_preview"`
	ResponseTone     string    `json:"response_tone"`
	DetectedTone     string    `json:"detected_tone"`
	Response         string    `json:"response"`
	ResponsePreview  string    `json:"response_preview"`
	Sources          []string  `json:"sources"`
	ContextUsed      int       `json:"context_used"`
	ModelUsed        string    `json:"model_used"`
	WordCount        int       `json:"word_count"`
	NegativeFeedback bool      `json:"negative_feedback"`
	CreatedAt        time.Time `json:"created_at"`
}

type DraftStats struct {
	ResponsesGenerated int `json:"responses_generated"`
	TotalWords         int `json:"total_words"`
}

// KnowledgeChunk is a knowledge-base passage stored with its embedding for
// the local vector store.
type KnowledgeChunk struct {
	ID        string    `json:"id"`
	ChunkID   int       `json:"chunk_id"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
}
