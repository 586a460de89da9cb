package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"gwi.com/support-copilot/internal/store"
)

// ChunkRepository is the persistence the local store needs.
type ChunkRepository interface {
	UpsertChunks(ctx context.Context, chunks []store.KnowledgeChunk) (int, error)
	AllChunks(ctx context.Context) ([]store.KnowledgeChunk, error)
	CountChunks(ctx context.Context) (int, error)
	ClearChunks(ctx context.Context) error
}

// Local is a brute-force cosine store over chunks kept in SQLite.
type Local struct {
	repo ChunkRepository
	log  *zap.Logger
}

func NewLocal(repo ChunkRepository, log *zap.Logger) *Local {
	return &Local{repo: repo, log: log}
}

func (l *Local) Name() string { return "sqlite" }

func (l *Local) Close() error { return nil }

// Reset removes every stored chunk.
func (l *Local) Reset(ctx context.Context) error {
	if err := l.repo.ClearChunks(ctx); err != nil {
		return err
	}
	l.log.Info("Cleared local vector store")
	return nil
}

func (l *Local) Upsert(ctx context.Context, records []Record) (int, error) {
	chunks := lo.Map(records, func(r Record, _ int) store.KnowledgeChunk {
		return store.KnowledgeChunk{
			ID:        r.ID,
			ChunkID:   r.ChunkID,
			Source:    r.Source,
			Content:   r.Text,
			Embedding: r.Values,
		}
	})
	return l.repo.UpsertChunks(ctx, chunks)
}

func (l *Local) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	chunks, err := l.repo.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	matches := make([]Match, 0, len(chunks))
	for _, c := range chunks {
		score, err := CosineSimilarity(vector, c.Embedding)
		if err != nil {
			l.log.Debug("Skipping chunk", zap.String("id", c.ID), zap.Error(err))
			continue
		}
		matches = append(matches, Match{
			ID:      c.ID,
			Score:   score,
			Text:    c.Content,
			ChunkID: c.ChunkID,
			Source:  c.Source,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (l *Local) Stats(ctx context.Context) (Stats, error) {
	n, err := l.repo.CountChunks(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{TotalVectorCount: n}
	if n > 0 {
		chunks, err := l.repo.AllChunks(ctx)
		if err != nil {
			return Stats{}, err
		}
		if len(chunks) > 0 {
			st.Dimension = len(chunks[0].Embedding)
		}
	}
	return st, nil
}
