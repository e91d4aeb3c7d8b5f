package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/dkoval/ragbox/internal/models"
	"github.com/dkoval/ragbox/internal/types"
)

type PgVectorConfig struct {
	ConnString string
	TableName  string
}

// PgVectorStore is the Postgres-backed alternative to FileStore, using
// the pgvector extension for cosine search. The database provides the
// durability and atomicity the file backend gets from snapshot-rename,
// so there is no in-process critical section here.
type PgVectorStore struct {
	config   PgVectorConfig
	embedder types.Embedder
	pool     *pgxpool.Pool
}

func NewPgVectorStore(ctx context.Context, config PgVectorConfig, embedder types.Embedder) (*PgVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	vs := &PgVectorStore{
		config:   config,
		embedder: embedder,
		pool:     pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return vs, nil
}

func (vs *PgVectorStore) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			content TEXT,
			embedding vector(%d),
			metadata JSONB
		)`, vs.config.TableName, vs.embedder.Dimension())
	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)
	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	return nil
}

func (vs *PgVectorStore) Exists(ctx context.Context) (bool, error) {
	count, err := vs.Count(ctx)
	if errors.Is(err, models.ErrIndexMissing) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (vs *PgVectorStore) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT count(*) FROM %s", vs.config.TableName)
	if err := vs.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	if count == 0 {
		return 0, models.ErrIndexMissing
	}
	return count, nil
}

func (vs *PgVectorStore) Upsert(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		count, err := vs.Count(ctx)
		if errors.Is(err, models.ErrIndexMissing) {
			return 0, nil
		}
		return count, err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = sanitizeUTF8(chunk.Content)
	}

	vectors, err := vs.embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d vectors for %d chunks", models.ErrModelFailure, len(vectors), len(chunks))
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		vs.config.TableName)

	for i, chunk := range chunks {
		_, err = tx.Exec(ctx, stmt,
			uuid.New().String(),
			chunk.Source,
			texts[i],
			pgvector.NewVector(vectors[i]),
			chunk.Metadata,
		)
		if err != nil {
			return 0, fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return vs.Count(ctx)
}

func (vs *PgVectorStore) Search(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		k = 4
	}

	if _, err := vs.Count(ctx); err != nil {
		return nil, err
	}

	// <=> is cosine distance; similarity = 1 - distance.
	query := fmt.Sprintf(`
		SELECT id, source, content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var res models.SearchResult
		err := rows.Scan(
			&res.Record.ID,
			&res.Record.Source,
			&res.Record.Content,
			&res.Record.Metadata,
			&res.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, res)
	}

	return results, rows.Err()
}

func (vs *PgVectorStore) Clear(ctx context.Context) error {
	query := fmt.Sprintf("TRUNCATE %s", vs.config.TableName)
	if _, err := vs.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("truncate table: %w", err)
	}
	return nil
}

func (vs *PgVectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
