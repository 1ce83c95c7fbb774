package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"go-ask/internal/llm"
)

// HistoryStore keeps completed exchanges in Postgres.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore connects to databaseURL and prepares the schema.
func NewHistoryStore(ctx context.Context, databaseURL string) (*HistoryStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &HistoryStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables and extensions
func (hs *HistoryStore) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS exchanges (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			prompt TEXT NOT NULL,
			answer TEXT NOT NULL,
			prompt_tokens INTEGER,
			completion_tokens INTEGER,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`, EmbeddingDim),

		`CREATE INDEX IF NOT EXISTS exchanges_created_at_idx ON exchanges (created_at DESC);`,
	}

	for _, query := range queries {
		if _, err := hs.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// Save stores rec with the embedding of its prompt.
func (hs *HistoryStore) Save(ctx context.Context, rec Record, embedding []float32) error {
	var promptTokens, completionTokens sql.NullInt64
	if rec.Usage != nil {
		promptTokens = sql.NullInt64{Int64: int64(rec.Usage.PromptTokens), Valid: true}
		completionTokens = sql.NullInt64{Int64: int64(rec.Usage.CompletionTokens), Valid: true}
	}

	// a prompt without words embeds to zeros, which has no cosine distance
	var vec any
	if !isZero(embedding) {
		vec = pgvector.NewVector(embedding)
	}

	query := `
		INSERT INTO exchanges (id, provider, model, prompt, answer, prompt_tokens, completion_tokens, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := hs.db.ExecContext(ctx, query,
		rec.ID, rec.Provider, rec.Model, rec.Prompt, rec.Answer,
		promptTokens, completionTokens, vec, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to store exchange: %w", err)
	}

	return nil
}

// SearchResult represents a search result with similarity score
type SearchResult struct {
	Record
	Similarity float64
}

// Recent returns the latest limit exchanges, newest first.
func (hs *HistoryStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	query := `
		SELECT id, provider, model, prompt, answer, prompt_tokens, completion_tokens, created_at
		FROM exchanges
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := hs.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Search performs vector similarity search over stored prompts
func (hs *HistoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	query := `
		SELECT id, provider, model, prompt, answer, prompt_tokens, completion_tokens, created_at,
			1 - (embedding <=> $1) AS similarity
		FROM exchanges
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`

	rows, err := hs.db.QueryContext(ctx, query, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var (
			result           SearchResult
			promptTokens     sql.NullInt64
			completionTokens sql.NullInt64
			similarity       float64
		)
		if err := rows.Scan(&result.ID, &result.Provider, &result.Model, &result.Prompt, &result.Answer,
			&promptTokens, &completionTokens, &result.Timestamp, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		setUsage(&result.Record, promptTokens, completionTokens)
		result.Similarity = similarity
		results = append(results, result)
	}

	return results, rows.Err()
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(rows rowScanner) (Record, error) {
	var (
		rec              Record
		promptTokens     sql.NullInt64
		completionTokens sql.NullInt64
	)
	if err := rows.Scan(&rec.ID, &rec.Provider, &rec.Model, &rec.Prompt, &rec.Answer,
		&promptTokens, &completionTokens, &rec.Timestamp); err != nil {
		return Record{}, fmt.Errorf("failed to scan exchange: %w", err)
	}
	setUsage(&rec, promptTokens, completionTokens)
	return rec, nil
}

func setUsage(rec *Record, prompt, completion sql.NullInt64) {
	if prompt.Valid || completion.Valid {
		rec.Usage = &llm.Usage{PromptTokens: int(prompt.Int64), CompletionTokens: int(completion.Int64)}
	}
}

// Count returns the number of stored exchanges
func (hs *HistoryStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := hs.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM exchanges").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count exchanges: %w", err)
	}
	return count, nil
}

// Clear removes all exchanges from the store
func (hs *HistoryStore) Clear(ctx context.Context) error {
	if _, err := hs.db.ExecContext(ctx, "DELETE FROM exchanges"); err != nil {
		return fmt.Errorf("failed to clear exchanges: %w", err)
	}
	return nil
}

// Close closes the database connection
func (hs *HistoryStore) Close() error {
	return hs.db.Close()
}
