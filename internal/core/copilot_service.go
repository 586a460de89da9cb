package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gwi.com/support-copilot/internal/auth"
	"gwi.com/support-copilot/internal/metrics"
	"gwi.com/support-copilot/internal/store"
	"gwi.com/support-copilot/internal/vectorstore"
)

const (
	DefaultResponseTone       = "empathetic"
	DefaultContextSensitivity = 3
	MinContextSensitivity     = 1
	MaxContextSensitivity     = 5

	// minToneAnalysisLength is the message length a message must exceed
	// before its tone is analysed.
	minToneAnalysisLength = 20
	hoursSavedPerWord     = 0.02

	issuePreviewLength    = 80
	responsePreviewLength = 100
	historyPageLimit      = 100
)

// ResponseTones lists the tones an agent may request for a draft.
var ResponseTones = []string{"empathetic", "professional", "reassuring", "formal", "friendly"}

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository is the persistence used by CopilotService.
type Repository interface {
	CreateAgent(ctx context.Context, username, passwordHash string) (*store.Agent, error)
	GetAgentByUsername(ctx context.Context, username string) (*store.Agent, error)
	CreateDraft(ctx context.Context, d *store.Draft) error
	GetDraft(ctx context.Context, id string, agentID int64) (*store.Draft, error)
	ListDrafts(ctx context.Context, agentID int64, limit, offset int) ([]store.Draft, error)
	ClearDrafts(ctx context.Context, agentID int64) (int, error)
	UpdateDraftFeedback(ctx context.Context, id string, agentID int64, negative bool) error
	DraftStats(ctx context.Context, agentID int64) (store.DraftStats, error)
}

type DraftRequest struct {
	Issue              string `json:"issue"`
	Tone               string `json:"tone"`
	ContextSensitivity int    `json:"context_sensitivity"`
}

type ToneResult struct {
	Tone     string `json:"tone"`
	Analyzed bool   `json:"analyzed"`
}

type AgentStats struct {
	ResponsesGenerated int     `json:"responses_generated"`
	TotalWords         int     `json:"total_words"`
	HoursSaved         float64 `json:"hours_saved"`
}

type ReindexResult struct {
	Chunks  int    `json:"chunks"`
	Warning string `json:"warning,omitempty"`
}

type Status struct {
	Provider    string `json:"provider"`
	VectorStore string `json:"vector_store"`
	Vectors     int    `json:"vectors"`
	Dimension   int    `json:"dimension"`
	Healthy     bool   `json:"healthy"`
	Error       string `json:"error,omitempty"`
}

type CopilotService struct {
	repo              Repository
	rag               *RAGService
	generator         *ResponseGenerator
	tokens            *auth.Issuer
	metrics           *metrics.Metrics
	log               *zap.Logger
	knowledgeBasePath string
}

func NewCopilotService(repo Repository, rag *RAGService, gen *ResponseGenerator, tokens *auth.Issuer,
	m *metrics.Metrics, knowledgeBasePath string, log *zap.Logger) *CopilotService {
	return &CopilotService{
		repo:              repo,
		rag:               rag,
		generator:         gen,
		tokens:            tokens,
		metrics:           m,
		log:               log,
		knowledgeBasePath: knowledgeBasePath,
	}
}

func (s *CopilotService) SignUp(ctx context.Context, username, password string) (*store.Agent, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.repo.CreateAgent(ctx, username, hash)
}

// Login checks the agent's password and returns a signed token.
func (s *CopilotService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	agent, err := s.repo.GetAgentByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if agent == nil || !auth.CheckPasswordHash(password, agent.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return s.tokens.GenerateJWT(agent.Username)
}

// Authenticate resolves a bearer token to its agent.
func (s *CopilotService) Authenticate(ctx context.Context, token string) (*store.Agent, error) {
	username, err := s.tokens.ValidateJWT(token)
	if err != nil {
		return nil, err
	}
	agent, err := s.repo.GetAgentByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: agent %q no longer exists", auth.ErrInvalidToken, username)
	}
	return agent, nil
}

// AnalyzeTone reports the customer's tone. Short messages are not sent to
// the model and come back neutral with Analyzed false.
func (s *CopilotService) AnalyzeTone(ctx context.Context, message string) ToneResult {
	if utf8.RuneCountInString(strings.TrimSpace(message)) <= minToneAnalysisLength {
		return ToneResult{Tone: ToneNeutral}
	}
	tone := s.generator.AnalyzeTone(ctx, message)
	s.metrics.ObserveTone(tone)
	return ToneResult{Tone: tone, Analyzed: true}
}

func (req DraftRequest) normalize() (DraftRequest, error) {
	req.Issue = strings.TrimSpace(req.Issue)
	if req.Issue == "" {
		return req, fmt.Errorf("%w: issue is required", ErrInvalidInput)
	}
	req.Tone = strings.ToLower(strings.TrimSpace(req.Tone))
	if req.Tone == "" {
		req.Tone = DefaultResponseTone
	}
	if !lo.Contains(ResponseTones, req.Tone) {
		return req, fmt.Errorf("%w: tone must be one of %s", ErrInvalidInput, strings.Join(ResponseTones, ", "))
	}
	if req.ContextSensitivity == 0 {
		req.ContextSensitivity = DefaultContextSensitivity
	}
	if req.ContextSensitivity < MinContextSensitivity || req.ContextSensitivity > MaxContextSensitivity {
		return req, fmt.Errorf("%w: context_sensitivity must be between %d and %d",
			ErrInvalidInput, MinContextSensitivity, MaxContextSensitivity)
	}
	return req, nil
}

// Draft analyses the issue's tone and retrieves knowledge-base context in
// parallel, generates a reply and records it in the agent's history.
func (s *CopilotService) Draft(ctx context.Context, agentID int64, req DraftRequest) (*store.Draft, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}
	start := time.Now()

	var (
		tone   ToneResult
		chunks []vectorstore.Match
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tone = s.AnalyzeTone(gctx, req.Issue)
		return nil
	})
	g.Go(func() error {
		chunks = s.rag.SearchSimilar(gctx, req.Issue, req.ContextSensitivity)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(chunks) > 0 {
		s.log.Info("Found relevant knowledge base sections", zap.Int("sections", len(chunks)))
	} else {
		s.log.Info("No specific knowledge base matches, using general best practices")
	}

	result := s.generator.GenerateResponseWithFallback(ctx, req.Issue, chunks, req.Tone, tone.Tone)

	draft := &store.Draft{
		AgentID:         agentID,
		Issue:           req.Issue,
		IssuePreview:    truncate(req.Issue, issuePreviewLength),
		ResponseTone:    req.Tone,
		DetectedTone:    tone.Tone,
		Response:        result.Response,
		ResponsePreview: truncate(result.Response, responsePreviewLength),
		Sources:         result.Sources,
		ContextUsed:     result.ContextUsed,
		ModelUsed:       result.ModelUsed,
		WordCount:       len(strings.Fields(result.Response)),
	}
	if err := s.repo.CreateDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to store draft: %w", err)
	}
	s.metrics.ObserveDraft(result.ModelUsed, result.ContextUsed, time.Since(start), result.ModelUsed == FallbackModel)

	s.log.Info("Generated draft",
		zap.String("draft_id", draft.ID),
		zap.Int64("agent_id", agentID),
		zap.String("model", draft.ModelUsed))
	return draft, nil
}

func (s *CopilotService) History(ctx context.Context, agentID int64, limit, offset int) ([]store.Draft, error) {
	if limit <= 0 || limit > historyPageLimit {
		limit = historyPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListDrafts(ctx, agentID, limit, offset)
}

func (s *CopilotService) GetDraft(ctx context.Context, agentID int64, draftID string) (*store.Draft, error) {
	return s.repo.GetDraft(ctx, draftID, agentID)
}

func (s *CopilotService) ClearHistory(ctx context.Context, agentID int64) (int, error) {
	n, err := s.repo.ClearDrafts(ctx, agentID)
	if err != nil {
		return 0, err
	}
	s.log.Info("History cleared", zap.Int64("agent_id", agentID), zap.Int("drafts", n))
	return n, nil
}

func (s *CopilotService) SetFeedback(ctx context.Context, agentID int64, draftID string, negative bool) error {
	return s.repo.UpdateDraftFeedback(ctx, draftID, agentID, negative)
}

func (s *CopilotService) Stats(ctx context.Context, agentID int64) (AgentStats, error) {
	st, err := s.repo.DraftStats(ctx, agentID)
	if err != nil {
		return AgentStats{}, err
	}
	return AgentStats{
		ResponsesGenerated: st.ResponsesGenerated,
		TotalWords:         st.TotalWords,
		HoursSaved:         float64(st.TotalWords) * hoursSavedPerWord,
	}, nil
}

// Reindex replaces the indexed knowledge base with the configured file,
// clearing the store first when it supports it. A missing file is a warning
// rather than an error and leaves the store as it was.
func (s *CopilotService) Reindex(ctx context.Context) (ReindexResult, error) {
	if _, err := os.Stat(s.knowledgeBasePath); errors.Is(err, os.ErrNotExist) {
		const warning = "Sample documents not found - using general knowledge only"
		s.log.Warn(warning, zap.String("path", s.knowledgeBasePath))
		return ReindexResult{Warning: warning}, nil
	}
	if _, err := s.rag.Reset(ctx); err != nil {
		return ReindexResult{}, err
	}
	n, err := s.rag.IndexDocuments(ctx, s.knowledgeBasePath)
	if err != nil {
		return ReindexResult{}, err
	}
	s.metrics.ObserveIndexed(n)
	return ReindexResult{Chunks: n}, nil
}

func (s *CopilotService) Status(ctx context.Context) Status {
	st := Status{
		Provider:    s.generator.llm.Name(),
		VectorStore: s.rag.StoreName(),
	}
	stats, err := s.rag.Stats(ctx)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Healthy = true
	st.Vectors = stats.TotalVectorCount
	st.Dimension = stats.Dimension
	return st
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
