package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gwi.com/support-copilot/internal/vectorstore"
)

const (
	upsertBatchSize = 100
	// MinRelevanceScore is the similarity a match must exceed to be used as context.
	MinRelevanceScore = 0.5
)

var (
	ErrEmptyText             = errors.New("text cannot be empty")
	ErrKnowledgeBaseNotFound = errors.New("knowledge base file not found")
	ErrKnowledgeBaseEmpty    = errors.New("knowledge base file is empty")
	ErrNoChunks              = errors.New("no valid chunks created from the knowledge base")
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type RAGService struct {
	vectors  vectorstore.Store
	embedder Embedder
	limiter  *rate.Limiter
	log      *zap.Logger
	now      func() time.Time
}

// NewRAGService wires retrieval over the given store. embedPerSecond caps the
// embedding request rate during indexing; zero or less disables the cap.
func NewRAGService(vectors vectorstore.Store, embedder Embedder, embedPerSecond float64, log *zap.Logger) *RAGService {
	limit := rate.Inf
	if embedPerSecond > 0 {
		limit = rate.Limit(embedPerSecond)
	}
	log.Info("RAG engine initialized", zap.String("vector_store", vectors.Name()))
	return &RAGService{
		vectors:  vectors,
		embedder: embedder,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
		now:      time.Now,
	}
}

func (s *RAGService) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	clean := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if clean == "" {
		return nil, ErrEmptyText
	}
	vec, err := s.embedder.Embed(ctx, clean)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	return vec, nil
}

// IndexDocuments chunks the file at path, embeds every chunk and uploads the
// vectors in batches. A batch that fails is retried one vector at a time and
// vectors that still fail are skipped. It returns the number uploaded.
func (s *RAGService) IndexDocuments(ctx context.Context, path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrKnowledgeBaseNotFound, path)
		}
		return 0, fmt.Errorf("document indexing failed: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return 0, ErrKnowledgeBaseEmpty
	}

	chunks := SmartChunk(string(content), DefaultChunkSize)
	if len(chunks) == 0 {
		return 0, ErrNoChunks
	}
	s.log.Info("Created chunks from knowledge base", zap.Int("chunks", len(chunks)), zap.String("path", path))

	source := filepath.Base(path)
	stamp := s.now().Unix()
	records := make([]vectorstore.Record, 0, len(chunks))
	for i, chunk := range chunks {
		if err := s.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("document indexing failed: %w", err)
		}
		vec, err := s.GetEmbedding(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("document indexing failed at chunk %d: %w", i, err)
		}
		records = append(records, vectorstore.Record{
			ID:      fmt.Sprintf("chunk_%d_%d", i, stamp),
			Values:  vec,
			Text:    chunk,
			ChunkID: i,
			Source:  source,
		})
	}

	uploaded := 0
	batches := (len(records) + upsertBatchSize - 1) / upsertBatchSize
	for b := 0; b < batches; b++ {
		end := min((b+1)*upsertBatchSize, len(records))
		batch := records[b*upsertBatchSize : end]

		n, err := s.vectors.Upsert(ctx, batch)
		if err == nil {
			uploaded += n
			s.log.Info("Uploaded batch", zap.Int("batch", b+1), zap.Int("batches", batches))
			continue
		}

		s.log.Warn("Failed to upload batch, retrying individually", zap.Int("batch", b+1), zap.Error(err))
		for _, rec := range batch {
			n, err := s.vectors.Upsert(ctx, []vectorstore.Record{rec})
			if err != nil {
				s.log.Debug("Skipping vector", zap.String("id", rec.ID), zap.Error(err))
				continue
			}
			uploaded += n
		}
	}

	s.log.Info("Finished indexing", zap.Int("uploaded", uploaded), zap.Int("total", len(records)))
	return uploaded, nil
}

// SearchSimilar returns the topK nearest chunks whose score exceeds
// MinRelevanceScore. Failures are logged and produce no results so that
// drafting can continue without context.
func (s *RAGService) SearchSimilar(ctx context.Context, query string, topK int) []vectorstore.Match {
	if strings.TrimSpace(query) == "" {
		s.log.Warn("Empty query provided to SearchSimilar")
		return []vectorstore.Match{}
	}

	vec, err := s.GetEmbedding(ctx, query)
	if err != nil {
		s.log.Error("Search error", zap.Error(err))
		return []vectorstore.Match{}
	}
	matches, err := s.vectors.Query(ctx, vec, topK)
	if err != nil {
		s.log.Error("Search error", zap.Error(err))
		return []vectorstore.Match{}
	}

	relevant := make([]vectorstore.Match, 0, len(matches))
	for _, m := range matches {
		if m.Score > MinRelevanceScore {
			relevant = append(relevant, m)
		}
	}
	s.log.Info("Found relevant knowledge base matches",
		zap.Int("matches", len(relevant)),
		zap.String("query", truncate(query, 50)))
	return relevant
}

// Reset clears the vector store before a full re-index. Stores that cannot
// be cleared are left untouched and Reset reports false.
func (s *RAGService) Reset(ctx context.Context) (bool, error) {
	r, ok := s.vectors.(vectorstore.Resetter)
	if !ok {
		return false, nil
	}
	if err := r.Reset(ctx); err != nil {
		return false, fmt.Errorf("failed to clear %s vector store: %w", s.vectors.Name(), err)
	}
	return true, nil
}

func (s *RAGService) Stats(ctx context.Context) (vectorstore.Stats, error) {
	return s.vectors.Stats(ctx)
}

func (s *RAGService) StoreName() string {
	return s.vectors.Name()
}
