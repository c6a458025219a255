// ABOUTME: Embed command turns writing paragraphs into labeled embeddings
// ABOUTME: Reads paragraph JSON per book, embeds, and writes size-capped output files
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cevr/bible-tools/internal/config"
	"github.com/cevr/bible-tools/internal/llm"
	"github.com/cevr/bible-tools/internal/models"
)

// Embedded output files are capped so each stays one raw CMS fetch.
const maxEmbeddedFileBytes = 25 * 1000 * 1000

var (
	embedInDir  string
	embedOutDir string
)

// paragraph is one unit of a writings source file.
type paragraph struct {
	Content      string `json:"content"`
	RefcodeShort string `json:"refcode_short"`
	RefcodeLong  string `json:"refcode_long"`
}

// NewEmbedCmd creates the embed command
func NewEmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed writing paragraphs into vectors",
		Long: `Embed writing paragraphs into vectors.

Reads one JSON file per book from the input directory, embeds each
paragraph, and writes labeled embeddings to the output directory.
Books that already have output files are skipped, so the command can
resume after interruption.

Examples:
  bibletools embed --in writings --out embedded
  bibletools embed --in writings --out embedded --verbose`,
		RunE: runEmbed,
	}

	cmd.Flags().StringVar(&embedInDir, "in", "writings", "Directory of paragraph JSON files")
	cmd.Flags().StringVar(&embedOutDir, "out", "embedded", "Directory for labeled embedding files")

	return cmd
}

func runEmbed(cmd *cobra.Command, args []string) error {
	// Load .env for API keys
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := llm.NewClientWithConfig(&llm.ClientConfig{
		APIKey:         cfg.OpenAIKey,
		EmbeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		MaxRetries:     cfg.MaxRetries,
		Timeout:        cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("initializing OpenAI client: %w", err)
	}

	if err := os.MkdirAll(embedOutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	books, err := listBookFiles(embedInDir)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	for _, path := range books {
		book := bookCode(path)
		if bookEmbedded(embedOutDir, book) {
			if verbose {
				log.Printf("Skipping %s: already embedded", book)
			}
			continue
		}
		if err := embedBook(ctx, client, path, book, cfg.EmbedConcurrency); err != nil {
			return fmt.Errorf("embedding %s: %w", book, err)
		}
	}

	return nil
}

// listBookFiles returns the JSON files in dir, sorted by name.
func listBookFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// bookCode is the filename without its extension.
func bookCode(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// bookEmbedded reports whether output already exists for book, either as a
// single file or as the first of a split series.
func bookEmbedded(outDir, book string) bool {
	for _, name := range []string{book + ".json", book + "_0.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err == nil {
			return true
		}
	}
	return false
}

func embedBook(ctx context.Context, client *llm.Client, path, book string, concurrency int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var paragraphs []paragraph
	if err := json.Unmarshal(data, &paragraphs); err != nil {
		return fmt.Errorf("decoding paragraphs: %w", err)
	}

	if !quiet {
		log.Printf("Embedding %s (%d paragraphs)", book, len(paragraphs))
	}

	// Embed in parallel; a failed paragraph is logged and dropped rather
	// than failing the whole book.
	embedded := make([]models.LabeledEmbedding, len(paragraphs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range paragraphs {
		g.Go(func() error {
			vec, err := client.Embed(gctx, p.Content)
			if err != nil {
				log.Printf("Skipping paragraph %s: %v", p.RefcodeShort, err)
				return nil
			}
			embedded[i] = models.LabeledEmbedding{
				Label:     p.RefcodeShort,
				Source:    p.Content,
				Embedding: vec,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	kept := embedded[:0]
	for _, le := range embedded {
		if le.Embedding != nil {
			kept = append(kept, le)
		}
	}

	chunks, err := chunkByByteLength(kept, maxEmbeddedFileBytes)
	if err != nil {
		return err
	}
	return writeEmbeddedChunks(embedOutDir, book, chunks)
}

// chunkByByteLength splits items into runs whose encoded size stays under
// budget. A single item larger than the budget gets its own run.
func chunkByByteLength(items []models.LabeledEmbedding, budget int) ([][]models.LabeledEmbedding, error) {
	var chunks [][]models.LabeledEmbedding
	var current []models.LabeledEmbedding
	size := 0
	for _, item := range items {
		encoded, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encoding embedding %q: %w", item.Label, err)
		}
		n := len(encoded) + 1 // separator
		if len(current) > 0 && size+n > budget {
			chunks = append(chunks, current)
			current = nil
			size = 0
		}
		current = append(current, item)
		size += n
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks, nil
}

// writeEmbeddedChunks writes book.json, or book_0.json.. when split.
func writeEmbeddedChunks(outDir, book string, chunks [][]models.LabeledEmbedding) error {
	for i, chunk := range chunks {
		name := book + ".json"
		if len(chunks) > 1 {
			name = fmt.Sprintf("%s_%d.json", book, i)
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(outDir, name), data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		if !quiet {
			log.Printf("Wrote %s (%d embeddings)", name, len(chunk))
		}
	}
	return nil
}
