// ABOUTME: Vector index for writings with nearest-neighbor search
// ABOUTME: Store interface plus DSN-based backend selection
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/cevr/bible-tools/internal/models"
)

// Store persists writings with their vectors and answers similarity queries.
type Store interface {
	// InsertWritings stores writings, replacing existing ones by ID.
	InsertWritings(ctx context.Context, writings []models.Writing) error

	// Search returns the writings nearest to vector, best first, up to limit.
	Search(ctx context.Context, vector models.Embedding, limit int) ([]models.Writing, error)

	// WritingContext returns the writing with id plus its positional
	// neighbors within the same book, in order.
	WritingContext(ctx context.Context, id string) ([]models.Writing, error)

	// Close releases resources.
	Close() error
}

// NotFoundError reports a writing ID with no stored row.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("writing %s not found", e.ID)
}

// Open selects a backend from dsn: postgres DSNs get the pgvector store,
// anything else is treated as a sqlite file path.
func Open(dsn string, dimension int) (Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("vector store DSN is empty")
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPgVectorStore(dsn, dimension)
	}
	return NewSQLiteStore(dsn)
}
