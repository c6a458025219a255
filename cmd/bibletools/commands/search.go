// ABOUTME: CLI command for one-off searches against the hosted corpora
// ABOUTME: Embeds the query, ranks both corpora, and prints the passages
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/cevr/bible-tools/internal/cms"
	"github.com/cevr/bible-tools/internal/config"
	"github.com/cevr/bible-tools/internal/corpus"
	"github.com/cevr/bible-tools/internal/llm"
)

var (
	searchThreshold float64
	searchTopK      int
	searchAnswer    bool
)

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the EGW and Bible corpora",
		Long: `Search the EGW and Bible corpora.

Embeds the query, downloads both embedding corpora from the CMS, and
prints the highest-scoring passages from each.

Examples:
  bibletools search "faith and works"
  bibletools search --top-k 10 "sanctuary"
  bibletools search --format json --answer "what is sanctification"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "Minimum similarity score (defaults to SEARCH_THRESHOLD)")
	cmd.Flags().IntVar(&searchTopK, "top-k", 0, "Hits to keep per corpus set (defaults to SEARCH_TOP_K)")
	cmd.Flags().BoolVar(&searchAnswer, "answer", false, "Generate an answer from the matched passages")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	// Load .env for API keys
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if searchThreshold != 0 {
		cfg.SearchThreshold = searchThreshold
	}
	if searchTopK != 0 {
		cfg.SearchTopK = searchTopK
	}

	client, err := llm.NewClientWithConfig(&llm.ClientConfig{
		APIKey:         cfg.OpenAIKey,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		MaxRetries:     cfg.MaxRetries,
		Timeout:        cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("initializing OpenAI client: %w", err)
	}

	store := &corpus.CMSStore{
		Client:    cms.NewClient(cfg.CMSRepo, cfg.CMSBranch, cms.WithMaxRetries(cfg.MaxRetries)),
		EGWPath:   cfg.EGWEmbeddingsPath,
		BiblePath: cfg.BibleEmbeddingsPath,
	}
	svc := corpus.NewService(store, client, client, corpus.Config{
		Threshold:     cfg.SearchThreshold,
		TopK:          cfg.SearchTopK,
		AnswerEnabled: searchAnswer || cfg.AnswerEnabled,
	})

	result, err := svc.Search(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("searching corpora: %w", err)
	}

	if outputFormat == "json" {
		jsonData, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", jsonData)
		return nil
	}

	out := cmd.OutOrStdout()
	if len(result.EGW) == 0 && len(result.Bible) == 0 {
		fmt.Fprintf(out, "No passages found for query: %s\n", args[0])
		return nil
	}
	if len(result.EGW) > 0 {
		fmt.Fprintln(out, "EGW:")
		for _, p := range result.EGW {
			fmt.Fprintf(out, "  [%s] %s\n", p.Label, p.Source)
		}
	}
	if len(result.Bible) > 0 {
		fmt.Fprintln(out, "Bible:")
		for _, p := range result.Bible {
			fmt.Fprintf(out, "  [%s] %s\n", p.Label, p.Source)
		}
	}
	if result.Answer != "" {
		fmt.Fprintf(out, "\nAnswer:\n%s\n", result.Answer)
	}
	return nil
}
