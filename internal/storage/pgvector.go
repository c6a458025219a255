// ABOUTME: PostgreSQL pgvector-backed store for the writings index
// ABOUTME: Cosine ranking is pushed down to the database
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cevr/bible-tools/internal/models"
)

// PgVectorStore is a Store backed by PostgreSQL with the pgvector extension.
type PgVectorStore struct {
	db        *sql.DB
	dimension int
}

// NewPgVectorStore opens (and migrates) a pgvector store. dimension is the
// embedding dimension the table is declared with.
func NewPgVectorStore(dsn string, dimension int) (*PgVectorStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("pgvector store needs a positive dimension, got %d", dimension)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PgVectorStore{db: db, dimension: dimension}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate pgvector schema: %w", err)
	}
	return store, nil
}

func (s *PgVectorStore) migrate() error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS writings (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			ord INTEGER NOT NULL,
			book TEXT NOT NULL,
			embedding vector(%d)
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS idx_writings_book_ord ON writings(book, ord)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// vectorLiteral renders an embedding in pgvector's input syntax.
func vectorLiteral(v models.Embedding) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// InsertWritings stores writings, replacing existing ones by ID.
func (s *PgVectorStore) InsertWritings(ctx context.Context, writings []models.Writing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO writings (id, content, ord, book, embedding) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET content = $2, ord = $3, book = $4, embedding = $5`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range writings {
		if _, err := stmt.ExecContext(ctx, w.ID, w.Content, w.Order, w.Book, vectorLiteral(w.Embedding)); err != nil {
			return fmt.Errorf("insert writing %s: %w", w.ID, err)
		}
	}

	return tx.Commit()
}

// Search ranks writings by cosine distance in the database.
func (s *PgVectorStore) Search(ctx context.Context, vector models.Embedding, limit int) ([]models.Writing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, ord, book FROM writings ORDER BY embedding <=> $1 LIMIT $2`,
		vectorLiteral(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("search writings: %w", err)
	}
	defer rows.Close()

	var writings []models.Writing
	for rows.Next() {
		var w models.Writing
		if err := rows.Scan(&w.ID, &w.Content, &w.Order, &w.Book); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		writings = append(writings, w)
	}
	return writings, rows.Err()
}

// WritingContext returns the writing plus its order-adjacent neighbors from
// the same book, in order.
func (s *PgVectorStore) WritingContext(ctx context.Context, id string) ([]models.Writing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT w.id, w.content, w.ord, w.book
		 FROM writings w, writings target
		 WHERE target.id = $1
		   AND w.book = target.book
		   AND w.ord BETWEEN target.ord - 1 AND target.ord + 1
		 ORDER BY w.ord`, id)
	if err != nil {
		return nil, fmt.Errorf("query context for %s: %w", id, err)
	}
	defer rows.Close()

	var writings []models.Writing
	for rows.Next() {
		var w models.Writing
		if err := rows.Scan(&w.ID, &w.Content, &w.Order, &w.Book); err != nil {
			return nil, fmt.Errorf("scan context row: %w", err)
		}
		writings = append(writings, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(writings) == 0 {
		return nil, &NotFoundError{ID: id}
	}
	return writings, nil
}

// Close closes the underlying database.
func (s *PgVectorStore) Close() error { return s.db.Close() }
