// ABOUTME: Tests for the index command's file grouping and writing assembly
// ABOUTME: Verifies split-file ordering and paragraph order preservation

package commands

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/cevr/bible-tools/internal/models"
)

func TestSplitBookPart(t *testing.T) {
	tests := []struct {
		name     string
		wantBook string
		wantPart int
	}{
		{"da", "da", 0},
		{"da_0", "da", 0},
		{"da_12", "da", 12},
		{"great_controversy", "great_controversy", 0},
		{"great_controversy_2", "great_controversy", 2},
	}

	for _, tt := range tests {
		book, part := splitBookPart(tt.name)
		if book != tt.wantBook || part != tt.wantPart {
			t.Errorf("splitBookPart(%q) = (%q, %d), want (%q, %d)",
				tt.name, book, part, tt.wantBook, tt.wantPart)
		}
	}
}

func TestLoadBookWritings_OrderAcrossSplitFiles(t *testing.T) {
	dir := t.TempDir()

	writeEmbeddedFile(t, filepath.Join(dir, "da_0.json"), []models.LabeledEmbedding{
		{Label: "DA 1.1", Source: "first", Embedding: models.Embedding{1}},
		{Label: "DA 1.2", Source: "second", Embedding: models.Embedding{1}},
	})
	writeEmbeddedFile(t, filepath.Join(dir, "da_1.json"), []models.LabeledEmbedding{
		{Label: "DA 1.3", Source: "third", Embedding: models.Embedding{1}},
	})

	books, err := listEmbeddedFiles(dir)
	if err != nil {
		t.Fatalf("listEmbeddedFiles() error = %v", err)
	}
	files, ok := books["da"]
	if !ok {
		t.Fatalf("book %q not grouped, got %v", "da", books)
	}

	writings, err := loadBookWritings("da", files)
	if err != nil {
		t.Fatalf("loadBookWritings() error = %v", err)
	}

	wantIDs := []string{"DA 1.1", "DA 1.2", "DA 1.3"}
	if len(writings) != len(wantIDs) {
		t.Fatalf("got %d writings, want %d", len(writings), len(wantIDs))
	}
	for i, w := range writings {
		if w.ID != wantIDs[i] {
			t.Errorf("writing %d: ID = %q, want %q", i, w.ID, wantIDs[i])
		}
		if w.Order != i {
			t.Errorf("writing %d: Order = %d, want %d", i, w.Order, i)
		}
		if w.Book != "da" {
			t.Errorf("writing %d: Book = %q, want %q", i, w.Book, "da")
		}
	}
}

func TestListEmbeddedFiles_IgnoresNonJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), "skip me")
	writeEmbeddedFile(t, filepath.Join(dir, "sc.json"), nil)

	books, err := listEmbeddedFiles(dir)
	if err != nil {
		t.Fatalf("listEmbeddedFiles() error = %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("got %d books, want 1: %v", len(books), books)
	}
	if _, ok := books["sc"]; !ok {
		t.Errorf("book %q not found", "sc")
	}
}

func writeEmbeddedFile(t *testing.T, path string, items []models.LabeledEmbedding) {
	t.Helper()
	data, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	writeFile(t, path, string(data))
}
