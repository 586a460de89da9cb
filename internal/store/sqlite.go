package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewSQLiteStore(dataSourceName string, log *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, log: log}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS agents (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        username TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS drafts (
        id TEXT PRIMARY KEY, -- UUID
        agent_id INTEGER NOT NULL,
        issue TEXT NOT NULL,
        issue_preview TEXT NOT NULL,
        response_tone TEXT NOT NULL,
        detected_tone TEXT NOT NULL,
        response TEXT NOT NULL,
        response_preview TEXT NOT NULL,
        sources_json TEXT NOT NULL DEFAULT '[]',
        context_used INTEGER NOT NULL DEFAULT 0,
        model_used TEXT NOT NULL,
        word_count INTEGER NOT NULL DEFAULT 0,
        negative_feedback BOOLEAN DEFAULT FALSE,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (agent_id) REFERENCES agents (id)
    );
    CREATE INDEX IF NOT EXISTS idx_drafts_agent_created ON drafts (agent_id, created_at);

    CREATE TABLE IF NOT EXISTS knowledge_chunks (
        id TEXT PRIMARY KEY, -- vector id
        chunk_id INTEGER NOT NULL,
        source TEXT NOT NULL,
        content TEXT NOT NULL,
        embedding_json TEXT NOT NULL
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Agent methods
func (s *SQLiteStore) CreateAgent(ctx context.Context, username, passwordHash string) (*Agent, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO agents (username, password_hash) VALUES (?, ?)", username, passwordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("agent %q: %w", username, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to insert agent: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetAgentByID(ctx, id)
}

// GetAgentByUsername returns nil, nil when no agent has the username.
func (s *SQLiteStore) GetAgentByUsername(ctx context.Context, username string) (*Agent, error) {
	var agent Agent
	err := s.db.QueryRowContext(ctx, "SELECT id, username, password_hash, created_at FROM agents WHERE username = ?", username).
		Scan(&agent.ID, &agent.Username, &agent.PasswordHash, &agent.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query agent: %w", err)
	}
	return &agent, nil
}

func (s *SQLiteStore) GetAgentByID(ctx context.Context, id int64) (*Agent, error) {
	var agent Agent
	err := s.db.QueryRowContext(ctx, "SELECT id, username, password_hash, created_at FROM agents WHERE id = ?", id).
		Scan(&agent.ID, &agent.Username, &agent.PasswordHash, &agent.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("agent %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get agent by id: %w", err)
	}
	return &agent, nil
}

// Draft methods
func (s *SQLiteStore) CreateDraft(ctx context.Context, d *Draft) error {
	d.ID = uuid.NewString()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Sources == nil {
		d.Sources = []string{}
	}
	sourcesJSON, err := json.Marshal(d.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO drafts
        (id, agent_id, issue, issue_preview, response_tone, detected_tone, response, response_preview,
         sources_json, context_used, model_used, word_count, negative_feedback, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.AgentID, d.Issue, d.IssuePreview, d.ResponseTone, d.DetectedTone, d.Response, d.ResponsePreview,
		string(sourcesJSON), d.ContextUsed, d.ModelUsed, d.WordCount, d.NegativeFeedback, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert draft: %w", err)
	}
	return nil
}

const draftColumns = `id, agent_id, issue, issue_preview, response_tone, detected_tone, response, response_preview,
    sources_json, context_used, model_used, word_count, negative_feedback, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*Draft, error) {
	var d Draft
	var sourcesJSON string
	if err := row.Scan(&d.ID, &d.AgentID, &d.Issue, &d.IssuePreview, &d.ResponseTone, &d.DetectedTone, &d.Response,
		&d.ResponsePreview, &sourcesJSON, &d.ContextUsed, &d.ModelUsed, &d.WordCount, &d.NegativeFeedback, &d.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &d.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources for draft %s: %w", d.ID, err)
	}
	return &d, nil
}

func (s *SQLiteStore) GetDraft(ctx context.Context, id string, agentID int64) (*Draft, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+draftColumns+" FROM drafts WHERE id = ? AND agent_id = ?", id, agentID)
	d, err := scanDraft(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return d, nil
}

// ListDrafts returns an agent's drafts, newest first.
func (s *SQLiteStore) ListDrafts(ctx context.Context, agentID int64, limit, offset int) ([]Draft, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+draftColumns+" FROM drafts WHERE agent_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?",
		agentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer rows.Close()

	drafts := []Draft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft row: %w", err)
		}
		drafts = append(drafts, *d)
	}
	return drafts, rows.Err()
}

func (s *SQLiteStore) ClearDrafts(ctx context.Context, agentID int64) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM drafts WHERE agent_id = ?", agentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete drafts: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func (s *SQLiteStore) UpdateDraftFeedback(ctx context.Context, id string, agentID int64, negative bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE drafts SET negative_feedback = ? WHERE id = ? AND agent_id = ?", negative, id, agentID)
	if err != nil {
		return fmt.Errorf("failed to execute feedback update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DraftStats(ctx context.Context, agentID int64) (DraftStats, error) {
	var st DraftStats
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(word_count), 0) FROM drafts WHERE agent_id = ?", agentID).
		Scan(&st.ResponsesGenerated, &st.TotalWords)
	if err != nil {
		return st, fmt.Errorf("failed to query draft stats: %w", err)
	}
	return st, nil
}

// KnowledgeChunk methods (local vector store)
func (s *SQLiteStore) UpsertChunks(ctx context.Context, chunks []KnowledgeChunk) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin chunk upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO knowledge_chunks (id, chunk_id, source, content, embedding_json)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET chunk_id = excluded.chunk_id, source = excluded.source,
            content = excluded.content, embedding_json = excluded.embedding_json`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare chunk upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		embeddingBytes, err := json.Marshal(c.Embedding)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal embedding for %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.ChunkID, c.Source, c.Content, string(embeddingBytes)); err != nil {
			return 0, fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit chunk upsert: %w", err)
	}
	return len(chunks), nil
}

func (s *SQLiteStore) AllChunks(ctx context.Context) ([]KnowledgeChunk, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, chunk_id, source, content, embedding_json FROM knowledge_chunks ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge_chunks: %w", err)
	}
	defer rows.Close()

	var chunks []KnowledgeChunk
	for rows.Next() {
		var c KnowledgeChunk
		var embeddingJSON string
		if err := rows.Scan(&c.ID, &c.ChunkID, &c.Source, &c.Content, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge_chunk row: %w", err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &c.Embedding); err != nil {
			s.log.Warn("Failed to unmarshal chunk embedding, skipping",
				zap.String("id", c.ID), zap.Error(err))
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStore) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count knowledge_chunks: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ClearChunks(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM knowledge_chunks"); err != nil {
		return fmt.Errorf("failed to delete knowledge_chunks: %w", err)
	}
	return nil
}
