// Package store persists chunks with their embedding in Postgres,
// using pgvector for nearest-neighbor search. Schema lives in
// migrations/ and is applied at bootstrap; every method here assumes
// the chunks table exists.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchResult is one nearest-neighbor hit. Distance follows the
// inner-product convention: lower means more similar.
type SearchResult struct {
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

type Postgres struct {
	db       *sql.DB
	embedder Embedder
}

func NewPostgres(db *sql.DB, embedder Embedder) *Postgres {
	return &Postgres{db: db, embedder: embedder}
}

// Upsert embeds each chunk and writes one record per chunk. Records
// colliding with an existing (doc_id, chunk_id) pair are skipped
// silently, so re-running an ingestion is safe.
func (s *Postgres) Upsert(ctx context.Context, docID string, chunks []string, meta map[string]any) error {
	if len(chunks) == 0 {
		return nil
	}
	if meta == nil {
		meta = map[string]any{}
	}

	vecs, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	query := `
		INSERT INTO chunks (doc_id, chunk_id, content, embedding, meta)
		VALUES ($1, $2, $3, $4::vector, $5)
		ON CONFLICT (doc_id, chunk_id) DO NOTHING
	`
	for i, chunk := range chunks {
		if _, err := s.db.ExecContext(ctx, query, docID, i, chunk, vectorLiteral(vecs[i]), metaJSON); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	return nil
}

// Search embeds the query and returns up to k results ordered by
// ascending inner-product distance. Ranking happens store-side in a
// single round trip.
func (s *Postgres) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	lit := vectorLiteral(vecs[0])

	rows, err := s.db.QueryContext(ctx, `
		SELECT content, (embedding <#> $1::vector) AS distance
		FROM chunks
		ORDER BY embedding <#> $1::vector
		LIMIT $2
	`, lit, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Content, &r.Distance); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// HasFilename reports whether any chunk's metadata carries the given
// filename. Ingestion idempotence is keyed on this alone.
func (s *Postgres) HasFilename(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM chunks WHERE meta->>'filename' = $1 LIMIT 1`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ClearAll deletes every chunk record, irreversibly.
func (s *Postgres) ClearAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks`)
	return err
}

func (s *Postgres) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

func (s *Postgres) CountDocuments(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT doc_id) FROM chunks`).Scan(&n)
	return n, err
}

// vectorLiteral renders a vector in pgvector's text format with six
// decimal places, e.g. "[0.100000,-0.200000]".
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%.6f", f)
	}
	b.WriteByte(']')
	return b.String()
}
