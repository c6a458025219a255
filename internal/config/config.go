// ABOUTME: Centralized configuration for the bible-tools service
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment tags.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds all configuration for the service
type Config struct {
	// Server settings
	Port string
	Env  string

	// OpenAI settings
	OpenAIKey      string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int

	// CMS settings
	CMSRepo             string
	CMSBranch           string
	EGWEmbeddingsPath   string
	BibleEmbeddingsPath string

	// Search policy
	SearchThreshold float64
	SearchTopK      int
	AnswerEnabled   bool

	// Transcription pipeline
	YtdlpPath             string
	FfmpegPath            string
	TmpDir                string
	AudioChunkBytes       int64
	TranscribeConcurrency int
	SummaryConcurrency    int
	ChunkByteBudget       int

	// Offline corpus pipeline
	EmbedConcurrency int

	// Vector index
	VectorDSN       string
	VectorDimension int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                  getEnv("PORT", "4242"),
		Env:                   getEnv("APP_ENV", EnvDevelopment),
		OpenAIKey:             os.Getenv("OPENAI_API_KEY"),
		ChatModel:             getEnv("CHAT_MODEL", "gpt-4o"),
		EmbeddingModel:        getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
		Timeout:               getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		MaxRetries:            getEnvInt("OPENAI_MAX_RETRIES", 3),
		CMSRepo:               getEnv("CMS_REPO", "cevr/cms"),
		CMSBranch:             getEnv("CMS_BRANCH", "main"),
		EGWEmbeddingsPath:     getEnv("EGW_EMBEDDINGS_PATH", "embeddings/egw"),
		BibleEmbeddingsPath:   getEnv("BIBLE_EMBEDDINGS_PATH", "embeddings/bible"),
		SearchThreshold:       getEnvFloat("SEARCH_THRESHOLD", 0.8),
		SearchTopK:            getEnvInt("SEARCH_TOP_K", 5),
		AnswerEnabled:         getEnvBool("ANSWER_ENABLED", false),
		YtdlpPath:             getEnv("YTDLP_PATH", "yt-dlp"),
		FfmpegPath:            getEnv("FFMPEG_PATH", "ffmpeg"),
		TmpDir:                getEnv("TMP_DIR", "tmp/audio"),
		AudioChunkBytes:       getEnvInt64("AUDIO_CHUNK_BYTES", 20*1000*1000),
		TranscribeConcurrency: getEnvInt("TRANSCRIBE_CONCURRENCY", 10),
		SummaryConcurrency:    getEnvInt("SUMMARY_CONCURRENCY", 10),
		ChunkByteBudget:       getEnvInt("CHUNK_BYTE_BUDGET", 8192),
		EmbedConcurrency:      getEnvInt("EMBED_CONCURRENCY", 15),
		VectorDSN:             os.Getenv("VECTOR_DSN"),
		VectorDimension:       getEnvInt("VECTOR_DIMENSION", 1536),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.SearchThreshold < -1 || c.SearchThreshold > 1 {
		return fmt.Errorf("SEARCH_THRESHOLD must be in [-1, 1], got %f", c.SearchThreshold)
	}
	if c.SearchTopK < 0 {
		return fmt.Errorf("SEARCH_TOP_K must be >= 0, got %d", c.SearchTopK)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction && c.Env != EnvTest {
		return fmt.Errorf("APP_ENV must be development, production or test, got %q", c.Env)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
