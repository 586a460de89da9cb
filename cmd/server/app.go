package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gwi.com/support-copilot/internal/auth"
	"gwi.com/support-copilot/internal/config"
	"gwi.com/support-copilot/internal/core"
	"gwi.com/support-copilot/internal/llm"
	"gwi.com/support-copilot/internal/logger"
	"gwi.com/support-copilot/internal/metrics"
	"gwi.com/support-copilot/internal/store"
	"gwi.com/support-copilot/internal/vectorstore"
)

// app holds the wired components shared by every sub-command.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	repo     *store.SQLiteStore
	provider llm.Provider
	vectors  vectorstore.Store
	metrics  *metrics.Metrics
	rag      *core.RAGService
	copilot  *core.CopilotService
}

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, dotenv := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFile)
	if !dotenv {
		log.Debug("No .env file found, using process environment")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, log, err
	}
	return cfg, log, nil
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.New("support_copilot")}

	repo, err := store.NewSQLiteStore(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.repo = repo

	models := llm.Models{Chat: cfg.ChatModel, Tone: cfg.ToneModel, Embedding: cfg.EmbeddingModel}
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, models, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
		}
		a.provider = gemini
	default:
		a.provider = llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, models)
	}

	switch cfg.VectorStore {
	case config.VectorStoreSQLite:
		a.vectors = vectorstore.NewLocal(repo, log)
	default:
		pc, err := vectorstore.OpenPinecone(ctx, cfg.PineconeAPIKey, cfg.PineconeIndexName, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		a.vectors = pc
	}

	a.rag = core.NewRAGService(a.vectors, a.provider, cfg.EmbedRateLimit, log)
	gen := core.NewResponseGenerator(a.provider, log)
	a.copilot = core.NewCopilotService(repo, a.rag, gen, auth.NewIssuer(cfg.JWTSecret), a.metrics, cfg.KnowledgeBasePath, log)

	log.Info("Support co-pilot initialized",
		zap.String("provider", a.provider.Name()),
		zap.String("vector_store", a.vectors.Name()))
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.vectors != nil {
		errs = append(errs, a.vectors.Close())
	}
	if a.provider != nil {
		errs = append(errs, a.provider.Close())
	}
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	_ = a.log.Sync()
	return errors.Join(errs...)
}
