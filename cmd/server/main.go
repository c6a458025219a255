// ABOUTME: Main entry point for the bible-tools HTTP server
// ABOUTME: Wires config, OpenAI client, corpus service and media pipeline
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/cevr/bible-tools/internal/cms"
	"github.com/cevr/bible-tools/internal/config"
	"github.com/cevr/bible-tools/internal/core"
	"github.com/cevr/bible-tools/internal/corpus"
	"github.com/cevr/bible-tools/internal/llm"
	"github.com/cevr/bible-tools/internal/media"
	"github.com/cevr/bible-tools/internal/server"
)

func main() {
	// Load .env file if it exists (for API keys)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found (this is okay for production): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	client, err := llm.NewClientWithConfig(&llm.ClientConfig{
		APIKey:         cfg.OpenAIKey,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		MaxRetries:     cfg.MaxRetries,
		Timeout:        cfg.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize OpenAI client: %v", err)
	}

	store := &corpus.CMSStore{
		Client:    cms.NewClient(cfg.CMSRepo, cfg.CMSBranch, cms.WithMaxRetries(cfg.MaxRetries)),
		EGWPath:   cfg.EGWEmbeddingsPath,
		BiblePath: cfg.BibleEmbeddingsPath,
	}
	corpusService := corpus.NewService(store, client, client, corpus.Config{
		Threshold:     cfg.SearchThreshold,
		TopK:          cfg.SearchTopK,
		AnswerEnabled: cfg.AnswerEnabled,
	})

	summarizer := core.NewSummarizer(client, cfg.ChunkByteBudget, cfg.SummaryConcurrency)
	pipeline := media.NewPipeline(client, summarizer, media.Config{
		YtdlpPath:   cfg.YtdlpPath,
		FfmpegPath:  cfg.FfmpegPath,
		TmpDir:      cfg.TmpDir,
		ChunkBytes:  cfg.AudioChunkBytes,
		Concurrency: cfg.TranscribeConcurrency,
	})

	if cfg.Env != config.EnvDevelopment {
		gin.SetMode(gin.ReleaseMode)
		corpusService.Preload()
	}

	router := server.New(corpusService, pipeline)

	host := "0.0.0.0"
	if cfg.Env == config.EnvDevelopment {
		host = "localhost"
	}
	srv := &http.Server{
		Addr:    host + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("bible-tools listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
