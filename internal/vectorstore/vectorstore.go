// Package vectorstore stores knowledge-base embeddings and answers
// nearest-neighbour queries, either through Pinecone or a local SQLite scan.
package vectorstore

import (
	"context"
	"errors"
)

// ErrIndexNotFound is returned when the configured remote index does not exist.
var ErrIndexNotFound = errors.New("vector index not found")

// Record is one embedded knowledge-base chunk.
type Record struct {
	ID      string
	Values  []float32
	Text    string
	ChunkID int
	Source  string
}

// Match is a query hit. Higher scores are more similar.
type Match struct {
	ID      string  `json:"id"`
	Score   float32 `json:"score"`
	Text    string  `json:"text"`
	ChunkID int     `json:"chunk_id"`
	Source  string  `json:"source"`
}

type Stats struct {
	TotalVectorCount int `json:"total_vector_count"`
	Dimension        int `json:"dimension"`
}

type Store interface {
	Name() string
	Upsert(ctx context.Context, records []Record) (int, error)
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Resetter is implemented by stores that can drop every indexed vector.
type Resetter interface {
	Reset(ctx context.Context) error
}
