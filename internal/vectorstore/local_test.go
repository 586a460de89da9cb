package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gwi.com/support-copilot/internal/store"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "kb.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLocal(db, zap.NewNop())
}

func TestLocalQueryRanksByCosine(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	n, err := l.Upsert(ctx, []Record{
		{ID: "a", Values: []float32{1, 0, 0}, Text: "password reset", ChunkID: 0, Source: "kb.txt"},
		{ID: "b", Values: []float32{0.7, 0.7, 0}, Text: "login troubleshooting", ChunkID: 1, Source: "kb.txt"},
		{ID: "c", Values: []float32{0, 0, 1}, Text: "refund policy", ChunkID: 2, Source: "kb.txt"},
		{ID: "bad", Values: []float32{1, 0}, Text: "wrong dimension", ChunkID: 3, Source: "kb.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	matches, err := l.Query(ctx, []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "b", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "password reset", matches[0].Text)
	assert.Equal(t, "kb.txt", matches[0].Source)

	none, err := l.Query(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLocalStats(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	st, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	_, err = l.Upsert(ctx, []Record{{ID: "a", Values: []float32{1, 2, 3, 4}, Text: "x", Source: "kb.txt"}})
	require.NoError(t, err)

	st, err = l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalVectorCount: 1, Dimension: 4}, st)
	assert.Equal(t, "sqlite", l.Name())
}

func TestLocalReset(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	_, err := l.Upsert(ctx, []Record{
		{ID: "a", Values: []float32{1, 0}, Text: "password reset", Source: "kb.txt"},
		{ID: "b", Values: []float32{0, 1}, Text: "refund policy", Source: "kb.txt"},
	})
	require.NoError(t, err)

	var _ Resetter = l
	require.NoError(t, l.Reset(ctx))

	st, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}
