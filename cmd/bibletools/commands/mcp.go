// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Exposes corpus search to LLM agents over stdio
package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/cevr/bible-tools/internal/cms"
	"github.com/cevr/bible-tools/internal/config"
	"github.com/cevr/bible-tools/internal/corpus"
	"github.com/cevr/bible-tools/internal/llm"
	"github.com/cevr/bible-tools/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents.

Runs corpus search as an MCP (Model Context Protocol) server over
stdio, so agents can search the EGW and Bible corpora as a tool.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by an agent host)
  bibletools mcp

  # Configure in the host's MCP config:
  # {
  #   "mcpServers": {
  #     "bibletools": {
  #       "command": "bibletools",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	// Load .env file if it exists (for API keys)
	if err := godotenv.Load(); err != nil && !quiet {
		log.Printf("No .env file found (this is okay for production): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
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
		AnswerEnabled: cfg.AnswerEnabled,
	})

	// Create MCP server
	server := mcpserver.NewMCPServer(
		"Bible Tools",
		versionInfo.Version,
	)
	mcp.RegisterTools(server, svc)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !quiet {
		log.Println("bible-tools MCP server starting on stdio...")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		if !quiet {
			log.Println("Shutdown signal received")
		}
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}
