// ABOUTME: OpenAI client for embeddings, chat completions and transcription
// ABOUTME: Wraps the SDK with per-call timeouts and exponential-backoff retry
package llm

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/cevr/bible-tools/internal/models"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = openai.GPT4o
	// DefaultEmbeddingModel matches the model the corpora were embedded with
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultMaxPromptTokens is the prompt budget guard, approximated by
	// whitespace word count
	DefaultMaxPromptTokens = 8192

	chatTemperature = 0.2
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey          string
	ChatModel       string
	EmbeddingModel  openai.EmbeddingModel
	MaxRetries      int
	Timeout         time.Duration
	MaxPromptTokens int
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:          apiKey,
		ChatModel:       DefaultChatModel,
		EmbeddingModel:  DefaultEmbeddingModel,
		MaxRetries:      3,
		Timeout:         30 * time.Second,
		MaxPromptTokens: DefaultMaxPromptTokens,
	}
}

// Client wraps the OpenAI API client with retry logic
type Client struct {
	client          *openai.Client
	chatModel       string
	embeddingModel  openai.EmbeddingModel
	maxRetries      int
	timeout         time.Duration
	maxPromptTokens int
}

// NewClient creates a new OpenAI client with the given API key using default
// configuration
func NewClient(apiKey string) (*Client, error) {
	return NewClientWithConfig(DefaultConfig(apiKey))
}

// NewClientWithConfig creates a new OpenAI client with custom configuration
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	c := &Client{
		client:          openai.NewClient(config.APIKey),
		chatModel:       config.ChatModel,
		embeddingModel:  config.EmbeddingModel,
		maxRetries:      config.MaxRetries,
		timeout:         config.Timeout,
		maxPromptTokens: config.MaxPromptTokens,
	}
	if c.chatModel == "" {
		c.chatModel = DefaultChatModel
	}
	if c.embeddingModel == "" {
		c.embeddingModel = DefaultEmbeddingModel
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.maxPromptTokens <= 0 {
		c.maxPromptTokens = DefaultMaxPromptTokens
	}
	return c, nil
}

// retry runs op with a per-attempt timeout and exponential backoff, up to
// maxRetries additional attempts.
func (c *Client) retry(ctx context.Context, op func(context.Context) error) error {
	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return op(callCtx)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)
	return backoff.Retry(attempt, policy)
}

// Embed generates the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) (models.Embedding, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embedding vectors for texts in one request, returned
// in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([]models.Embedding, error) {
	var embeddings []models.Embedding

	err := c.retry(ctx, func(ctx context.Context) error {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: c.embeddingModel,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts)))
		}

		embeddings = make([]models.Embedding, len(resp.Data))
		for i, d := range resp.Data {
			vector := make(models.Embedding, len(d.Embedding))
			for j, v := range d.Embedding {
				vector[j] = float64(v)
			}
			embeddings[i] = vector
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	return embeddings, nil
}

// Chat runs a chat completion over messages and returns the first choice.
// Prompts over the token budget fail with TokenLimitError before any call.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if tokens := countPromptTokens(messages); tokens > c.maxPromptTokens {
		return "", &TokenLimitError{Tokens: tokens, Limit: c.maxPromptTokens}
	}

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	var content string
	err := c.retry(ctx, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.chatModel,
			Messages:    chatMessages,
			Temperature: chatTemperature,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(&NoChoicesError{Model: c.chatModel})
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return content, nil
}

// Transcribe runs Whisper over audio bytes. filename hints the format to
// the API. Bytes rather than a reader so retries can restart the upload.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var text string
	err := c.retry(ctx, func(ctx context.Context) error {
		resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:       openai.Whisper1,
			Reader:      bytes.NewReader(audio),
			FilePath:    filename,
			Temperature: chatTemperature,
		})
		if err != nil {
			return err
		}
		if resp.Text == "" {
			return backoff.Permanent(&NoTextError{Filename: filename})
		}
		text = resp.Text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("transcribing %s: %w", filename, err)
	}
	return text, nil
}

// countPromptTokens approximates token usage by whitespace word count. Known
// imprecise; the budget is set low enough to absorb the error.
func countPromptTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(strings.Fields(m.Content))
	}
	return total
}
