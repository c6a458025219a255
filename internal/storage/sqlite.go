// ABOUTME: SQLite-backed vector store using JSON-encoded vectors
// ABOUTME: Brute-force cosine ranking in process; context via the ord column
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/cevr/bible-tools/internal/core"
	"github.com/cevr/bible-tools/internal/models"
)

// SQLiteStore is a Store backed by a local sqlite file. Vectors are stored
// as JSON and ranked in process; corpora here are small enough that a linear
// scan beats carrying an ANN engine.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a sqlite store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}

	schema := `CREATE TABLE IF NOT EXISTS writings (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		ord INTEGER NOT NULL,
		book TEXT NOT NULL,
		embedding TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_writings_book_ord ON writings(book, ord);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// InsertWritings stores writings, replacing existing ones by ID.
func (s *SQLiteStore) InsertWritings(ctx context.Context, writings []models.Writing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO writings (id, content, ord, book, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range writings {
		embedding, err := json.Marshal(w.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding for %s: %w", w.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, w.ID, w.Content, w.Order, w.Book, string(embedding)); err != nil {
			return fmt.Errorf("insert writing %s: %w", w.ID, err)
		}
	}

	return tx.Commit()
}

// Search scans all rows and ranks them by cosine similarity. Rows whose
// vectors do not match the query dimension are skipped.
func (s *SQLiteStore) Search(ctx context.Context, vector models.Embedding, limit int) ([]models.Writing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, ord, book, embedding FROM writings`)
	if err != nil {
		return nil, fmt.Errorf("scan writings: %w", err)
	}
	defer rows.Close()

	type scored struct {
		writing models.Writing
		score   float64
	}
	var results []scored
	for rows.Next() {
		var w models.Writing
		var embedding string
		if err := rows.Scan(&w.ID, &w.Content, &w.Order, &w.Book, &embedding); err != nil {
			return nil, fmt.Errorf("scan writing row: %w", err)
		}
		if err := json.Unmarshal([]byte(embedding), &w.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", w.ID, err)
		}
		score, err := core.CosineSimilarity(vector, w.Embedding)
		if err != nil {
			continue
		}
		results = append(results, scored{writing: w, score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate writings: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if limit >= 0 && len(results) > limit {
		results = results[:limit]
	}

	writings := make([]models.Writing, len(results))
	for i, r := range results {
		writings[i] = r.writing
	}
	return writings, nil
}

// WritingContext returns the writing plus its order-adjacent neighbors from
// the same book, in order.
func (s *SQLiteStore) WritingContext(ctx context.Context, id string) ([]models.Writing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT w.id, w.content, w.ord, w.book, w.embedding
		 FROM writings w, writings target
		 WHERE target.id = ?
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
		var embedding string
		if err := rows.Scan(&w.ID, &w.Content, &w.Order, &w.Book, &embedding); err != nil {
			return nil, fmt.Errorf("scan context row: %w", err)
		}
		if err := json.Unmarshal([]byte(embedding), &w.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", w.ID, err)
		}
		writings = append(writings, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate context rows: %w", err)
	}
	if len(writings) == 0 {
		return nil, &NotFoundError{ID: id}
	}
	return writings, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
