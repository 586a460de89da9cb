package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gwi.com/support-copilot/internal/vectorstore"
)

func writeKB(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample_docs.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestRAG(vectors *fakeVectors, provider *fakeProvider) *RAGService {
	rag := NewRAGService(vectors, provider, 0, zap.NewNop())
	rag.now = func() time.Time { return time.Unix(1700000000, 0) }
	return rag
}

func TestGetEmbeddingCleansText(t *testing.T) {
	provider := &fakeProvider{}
	rag := newTestRAG(&fakeVectors{}, provider)

	_, err := rag.GetEmbedding(context.Background(), "  line one\nline two \n")
	require.NoError(t, err)
	assert.Equal(t, []string{"line one line two"}, provider.embedded)

	_, err = rag.GetEmbedding(context.Background(), "\n \n")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestIndexDocuments(t *testing.T) {
	vectors := &fakeVectors{}
	rag := newTestRAG(vectors, &fakeProvider{})
	path := writeKB(t, "[Account Access] Reset your password from the login page. Check spam for the email.\n\n[Billing Policy] Refunds take 5-7 business days.")

	n, err := rag.IndexDocuments(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, vectors.records, 2)

	first := vectors.records[0]
	assert.Equal(t, "chunk_0_1700000000", first.ID)
	assert.Equal(t, "Reset your password from the login page. Check spam for the email.", first.Text)
	assert.Equal(t, "sample_docs.txt", first.Source)
	assert.Equal(t, 1, vectors.upsertCall)
	assert.Equal(t, "chunk_1_1700000000", vectors.records[1].ID)
	assert.Equal(t, 1, vectors.records[1].ChunkID)
}

func TestIndexDocumentsBatchesAndFallsBackToSingles(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&sb, "[Topic] Answer number %03d. ", i)
	}
	path := writeKB(t, sb.String())

	vectors := &fakeVectors{failBatch: true, failIDs: map[string]bool{"chunk_7_1700000000": true}}
	rag := newTestRAG(vectors, &fakeProvider{})

	n, err := rag.IndexDocuments(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 149, n)
	// two failed batches followed by one upsert per vector
	assert.Equal(t, 2+150, vectors.upsertCall)
}

func TestIndexDocumentsErrors(t *testing.T) {
	ctx := context.Background()
	rag := newTestRAG(&fakeVectors{}, &fakeProvider{})

	_, err := rag.IndexDocuments(ctx, filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, ErrKnowledgeBaseNotFound)

	_, err = rag.IndexDocuments(ctx, writeKB(t, "  \n\t"))
	assert.ErrorIs(t, err, ErrKnowledgeBaseEmpty)

	_, err = rag.IndexDocuments(ctx, writeKB(t, "Too short."))
	assert.ErrorIs(t, err, ErrNoChunks)

	failing := newTestRAG(&fakeVectors{}, &fakeProvider{embedFn: func(string) ([]float32, error) {
		return nil, errors.New("quota exceeded")
	}})
	_, err = failing.IndexDocuments(ctx, writeKB(t, "A sentence that is long enough to index."))
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestIndexDocumentsHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rag := NewRAGService(&fakeVectors{}, &fakeProvider{}, 1, zap.NewNop())
	_, err := rag.IndexDocuments(ctx, writeKB(t, "A sentence that is long enough to index."))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchSimilarFiltersByScore(t *testing.T) {
	vectors := &fakeVectors{matches: []vectorstore.Match{
		{ID: "a", Score: 0.92, Text: "Reset password", ChunkID: 1},
		{ID: "b", Score: 0.5, Text: "Exactly at threshold", ChunkID: 2},
		{ID: "c", Score: 0.61, Text: "Login troubleshooting", ChunkID: 3},
	}}
	rag := newTestRAG(vectors, &fakeProvider{})

	got := rag.SearchSimilar(context.Background(), "cannot login", 3)

	assert.Equal(t, 3, vectors.lastTopK)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestSearchSimilarSwallowsFailures(t *testing.T) {
	ctx := context.Background()

	rag := newTestRAG(&fakeVectors{queryErr: errors.New("index unavailable")}, &fakeProvider{})
	assert.Empty(t, rag.SearchSimilar(ctx, "login", 3))

	provider := &fakeProvider{}
	rag = newTestRAG(&fakeVectors{}, provider)
	assert.Empty(t, rag.SearchSimilar(ctx, "   ", 3))
	assert.Empty(t, provider.embedded, "blank queries are not embedded")
}
