// ABOUTME: Corpus service owning the EGW and Bible embedding sets
// ABOUTME: Single-flight loads from the CMS, then process-lifetime read-only state
package corpus

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cevr/bible-tools/internal/cms"
	"github.com/cevr/bible-tools/internal/core"
	"github.com/cevr/bible-tools/internal/llm"
	"github.com/cevr/bible-tools/internal/models"
	"github.com/cevr/bible-tools/internal/taskqueue"
)

// Queue keys for the two corpus loads.
const (
	keyEGW   = "egw"
	keyBible = "bible"
)

// Embedder is the query-embedding dependency.
type Embedder interface {
	Embed(ctx context.Context, text string) (models.Embedding, error)
}

// Chatter is the answer-generation dependency.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// Store is the corpus-loading dependency, satisfied by the CMS client.
type Store interface {
	EGWSets(ctx context.Context) ([][]models.LabeledEmbedding, error)
	BibleSets(ctx context.Context) ([][]models.LabeledEmbedding, error)
}

// CMSStore loads both corpora from the GitHub-backed CMS.
type CMSStore struct {
	Client    *cms.Client
	EGWPath   string
	BiblePath string
}

// EGWSets fetches the EGW embeddings directory. Files decode directly as
// labeled embeddings.
func (s *CMSStore) EGWSets(ctx context.Context) ([][]models.LabeledEmbedding, error) {
	return cms.GetDir[[]models.LabeledEmbedding](ctx, s.Client, s.EGWPath)
}

// BibleSets fetches the Bible embeddings directory and maps verse records
// into labeled embeddings.
func (s *CMSStore) BibleSets(ctx context.Context) ([][]models.LabeledEmbedding, error) {
	books, err := cms.GetDir[[]models.Verse](ctx, s.Client, s.BiblePath)
	if err != nil {
		return nil, err
	}
	sets := make([][]models.LabeledEmbedding, len(books))
	for i, verses := range books {
		set := make([]models.LabeledEmbedding, len(verses))
		for j, v := range verses {
			set[j] = v.Labeled()
		}
		sets[i] = set
	}
	return sets, nil
}

// Config holds the ranking and answer policy for searches.
type Config struct {
	Threshold     float64
	TopK          int
	AnswerEnabled bool
}

// SearchResult is the /search response body.
type SearchResult struct {
	EGW    []models.Passage `json:"egw"`
	Bible  []models.Passage `json:"bible"`
	Answer string           `json:"answer,omitempty"`
}

// Service answers queries against the two corpora. The embedding sets load
// once per process: a successful load is kept forever, a failed load may be
// retried by the next request. Loads for the same corpus collapse into one
// in-flight fetch.
type Service struct {
	store    Store
	embedder Embedder
	chatter  Chatter
	cfg      Config
	queue    *taskqueue.Queue

	mu    sync.Mutex
	egw   [][]models.LabeledEmbedding
	bible [][]models.LabeledEmbedding
}

// NewService creates a corpus service.
func NewService(store Store, embedder Embedder, chatter Chatter, cfg Config) *Service {
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.8
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	return &Service{
		store:    store,
		embedder: embedder,
		chatter:  chatter,
		cfg:      cfg,
		queue:    taskqueue.New(),
	}
}

// EGW returns the EGW embedding sets, loading them on first use.
func (s *Service) EGW(ctx context.Context) ([][]models.LabeledEmbedding, error) {
	return s.load(ctx, keyEGW, &s.egw, s.store.EGWSets)
}

// Bible returns the Bible embedding sets, loading them on first use.
func (s *Service) Bible(ctx context.Context) ([][]models.LabeledEmbedding, error) {
	return s.load(ctx, keyBible, &s.bible, s.store.BibleSets)
}

// load memoizes a successful fetch into slot, collapsing concurrent fetches
// through the single-flight queue. Only success is memoized.
func (s *Service) load(ctx context.Context, key string, slot *[][]models.LabeledEmbedding, fetch func(context.Context) ([][]models.LabeledEmbedding, error)) ([][]models.LabeledEmbedding, error) {
	s.mu.Lock()
	if *slot != nil {
		sets := *slot
		s.mu.Unlock()
		return sets, nil
	}
	s.mu.Unlock()

	return taskqueue.Do(s.queue, key, func() ([][]models.LabeledEmbedding, error) {
		sets, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		*slot = sets
		s.mu.Unlock()
		return sets, nil
	})
}

// Loading reports whether either corpus load is in flight. Drives /health.
func (s *Service) Loading() bool {
	return s.queue.Loading(keyEGW, keyBible)
}

// Preload warms both corpora in the background, sequentially.
func (s *Service) Preload() {
	go func() {
		ctx := context.Background()
		if _, err := s.EGW(ctx); err != nil {
			log.Printf("preload: egw corpus failed: %v", err)
		}
		if _, err := s.Bible(ctx); err != nil {
			log.Printf("preload: bible corpus failed: %v", err)
		}
	}()
}

const answerPrompt = `You are a study helper for religious writings. You will be given a question and a set of passages retrieved for it, each with a citation label. Answer the question using only the passages, citing labels inline. If the passages do not answer the question, say so.`

// Search embeds the query, ranks it against both corpora, and optionally
// produces a chat-completion answer from the top passages.
func (s *Service) Search(ctx context.Context, query string) (SearchResult, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return SearchResult{}, fmt.Errorf("embedding query: %w", err)
	}

	var egwSets, bibleSets [][]models.LabeledEmbedding
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		egwSets, err = s.EGW(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		bibleSets, err = s.Bible(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return SearchResult{}, err
	}

	result := SearchResult{
		EGW:   core.CompareEmbeddingToMultipleSets(embedding, egwSets, s.cfg.Threshold, s.cfg.TopK),
		Bible: core.CompareEmbeddingToMultipleSets(embedding, bibleSets, s.cfg.Threshold, s.cfg.TopK),
	}

	if s.cfg.AnswerEnabled && s.chatter != nil {
		answer, err := s.answer(ctx, query, result)
		if err != nil {
			return SearchResult{}, fmt.Errorf("generating answer: %w", err)
		}
		result.Answer = answer
	}

	return result, nil
}

// answer asks the chat model to answer query from the ranked passages.
func (s *Service) answer(ctx context.Context, query string, result SearchResult) (string, error) {
	if len(result.EGW) == 0 && len(result.Bible) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nPassages:\n", query)
	for _, p := range result.EGW {
		fmt.Fprintf(&b, "[%s] %s\n", p.Label, p.Source)
	}
	for _, p := range result.Bible {
		fmt.Fprintf(&b, "[%s] %s\n", p.Label, p.Source)
	}

	return s.chatter.Chat(ctx, []llm.Message{
		llm.SystemMessage(answerPrompt),
		llm.UserMessage(b.String()),
	})
}
