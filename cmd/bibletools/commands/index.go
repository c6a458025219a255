// ABOUTME: Index command loads labeled embedding files into the vector store
// ABOUTME: Preserves paragraph order within each book for context lookups
package commands

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cevr/bible-tools/internal/config"
	"github.com/cevr/bible-tools/internal/models"
	"github.com/cevr/bible-tools/internal/storage"
)

var indexInDir string

// NewIndexCmd creates the index command
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load labeled embeddings into the vector store",
		Long: `Load labeled embeddings into the vector store.

Reads the output of "bibletools embed" and inserts every embedding
into the store named by VECTOR_DSN. Paragraphs keep their position
within each book so neighboring-paragraph lookups work.

Examples:
  bibletools index --in embedded
  VECTOR_DSN=postgres://localhost/bibletools bibletools index --in embedded`,
		RunE: runIndex,
	}

	cmd.Flags().StringVar(&indexInDir, "in", "embedded", "Directory of labeled embedding files")

	return cmd
}

// embeddedFile is one on-disk chunk of a book's embeddings.
type embeddedFile struct {
	path string
	part int
}

func runIndex(cmd *cobra.Command, args []string) error {
	// Load .env for the store DSN
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.Open(cfg.VectorDSN, cfg.VectorDimension)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer store.Close()

	books, err := listEmbeddedFiles(indexInDir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	total := 0
	for _, book := range sortedKeys(books) {
		writings, err := loadBookWritings(book, books[book])
		if err != nil {
			return fmt.Errorf("loading %s: %w", book, err)
		}
		if err := store.InsertWritings(ctx, writings); err != nil {
			return fmt.Errorf("indexing %s: %w", book, err)
		}
		total += len(writings)
		if !quiet {
			log.Printf("Indexed %s (%d writings)", book, len(writings))
		}
	}

	if !quiet {
		log.Printf("Indexed %d writings across %d books", total, len(books))
	}
	return nil
}

// listEmbeddedFiles groups the directory's JSON files by book, ordering
// split files by their numeric suffix.
func listEmbeddedFiles(dir string) (map[string][]embeddedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	books := make(map[string][]embeddedFile)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		book, part := splitBookPart(strings.TrimSuffix(e.Name(), ".json"))
		books[book] = append(books[book], embeddedFile{
			path: filepath.Join(dir, e.Name()),
			part: part,
		})
	}
	for _, files := range books {
		sort.Slice(files, func(i, j int) bool { return files[i].part < files[j].part })
	}
	return books, nil
}

// splitBookPart separates a "book_3" style name into its book code and
// part index. Names without a numeric suffix are part 0.
func splitBookPart(name string) (string, int) {
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return name, 0
	}
	part, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return name, 0
	}
	return name[:i], part
}

func loadBookWritings(book string, files []embeddedFile) ([]models.Writing, error) {
	var writings []models.Writing
	order := 0
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, err
		}
		var embedded []models.LabeledEmbedding
		if err := json.Unmarshal(data, &embedded); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", f.path, err)
		}
		for _, le := range embedded {
			writings = append(writings, models.Writing{
				ID:        le.Label,
				Content:   le.Source,
				Order:     order,
				Book:      book,
				Embedding: le.Embedding,
			})
			order++
		}
	}
	return writings, nil
}

func sortedKeys(m map[string][]embeddedFile) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
