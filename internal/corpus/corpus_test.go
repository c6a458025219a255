// ABOUTME: Unit tests for the corpus service
// ABOUTME: Fake store/embedder/chatter cover memoization, loading and search
package corpus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cevr/bible-tools/internal/llm"
	"github.com/cevr/bible-tools/internal/models"
)

type fakeStore struct {
	egwCalls   int32
	bibleCalls int32
	egwErr     error
	block      chan struct{}
	egw        [][]models.LabeledEmbedding
	bible      [][]models.LabeledEmbedding
}

func (f *fakeStore) EGWSets(ctx context.Context) ([][]models.LabeledEmbedding, error) {
	atomic.AddInt32(&f.egwCalls, 1)
	if f.block != nil {
		<-f.block
	}
	if f.egwErr != nil {
		return nil, f.egwErr
	}
	return f.egw, nil
}

func (f *fakeStore) BibleSets(ctx context.Context) ([][]models.LabeledEmbedding, error) {
	atomic.AddInt32(&f.bibleCalls, 1)
	return f.bible, nil
}

type fakeEmbedder struct {
	embedding models.Embedding
	err       error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (models.Embedding, error) {
	return f.embedding, f.err
}

type fakeAnswerer struct {
	answer string
	err    error
}

func (f *fakeAnswerer) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return f.answer, f.err
}

func corpusSets() ([][]models.LabeledEmbedding, [][]models.LabeledEmbedding) {
	egw := [][]models.LabeledEmbedding{{
		{Label: "DA 1.1", Source: "egw paragraph", Embedding: models.Embedding{1, 0}},
	}}
	bible := [][]models.LabeledEmbedding{{
		{Label: "John 1:1", Source: "bible verse", Embedding: models.Embedding{0, 1}},
	}}
	return egw, bible
}

func TestService_Search(t *testing.T) {
	egw, bible := corpusSets()
	store := &fakeStore{egw: egw, bible: bible}
	svc := NewService(store, &fakeEmbedder{embedding: models.Embedding{1, 0}}, nil, Config{Threshold: 0.8, TopK: 5})

	result, err := svc.Search(context.Background(), "what is the light")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(result.EGW) != 1 || result.EGW[0].Label != "DA 1.1" {
		t.Errorf("EGW = %v, want the DA 1.1 passage", result.EGW)
	}
	// The orthogonal bible verse scores 0, below threshold.
	if len(result.Bible) != 0 {
		t.Errorf("Bible = %v, want empty", result.Bible)
	}
	if result.Answer != "" {
		t.Errorf("Answer = %q, want empty when answers are disabled", result.Answer)
	}
}

func TestService_SearchWithAnswer(t *testing.T) {
	egw, bible := corpusSets()
	store := &fakeStore{egw: egw, bible: bible}
	svc := NewService(store, &fakeEmbedder{embedding: models.Embedding{1, 0}},
		&fakeAnswerer{answer: "an answer"}, Config{Threshold: 0.8, TopK: 5, AnswerEnabled: true})

	result, err := svc.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Answer != "an answer" {
		t.Errorf("Answer = %q", result.Answer)
	}
}

func TestService_SearchAnswerFailureFailsRequest(t *testing.T) {
	egw, bible := corpusSets()
	store := &fakeStore{egw: egw, bible: bible}
	wantErr := errors.New("chat failed")
	svc := NewService(store, &fakeEmbedder{embedding: models.Embedding{1, 0}},
		&fakeAnswerer{err: wantErr}, Config{Threshold: 0.8, TopK: 5, AnswerEnabled: true})

	_, err := svc.Search(context.Background(), "q")
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestService_LoadMemoizesSuccess(t *testing.T) {
	egw, bible := corpusSets()
	store := &fakeStore{egw: egw, bible: bible}
	svc := NewService(store, &fakeEmbedder{embedding: models.Embedding{1, 0}}, nil, Config{})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.EGW(ctx); err != nil {
			t.Fatalf("EGW load %d failed: %v", i, err)
		}
	}

	if n := atomic.LoadInt32(&store.egwCalls); n != 1 {
		t.Errorf("EGW fetched %d times, want 1", n)
	}
}

func TestService_LoadRetriesAfterFailure(t *testing.T) {
	egw, bible := corpusSets()
	store := &fakeStore{egw: egw, bible: bible, egwErr: errors.New("cms down")}
	svc := NewService(store, &fakeEmbedder{embedding: models.Embedding{1, 0}}, nil, Config{})

	ctx := context.Background()
	if _, err := svc.EGW(ctx); err == nil {
		t.Fatal("expected first load to fail")
	}

	// Failure is not memoized; the next call fetches again and succeeds.
	store.egwErr = nil
	if _, err := svc.EGW(ctx); err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if n := atomic.LoadInt32(&store.egwCalls); n != 2 {
		t.Errorf("EGW fetched %d times, want 2", n)
	}
}

func TestService_LoadingDuringFetch(t *testing.T) {
	egw, bible := corpusSets()
	store := &fakeStore{egw: egw, bible: bible, block: make(chan struct{})}
	svc := NewService(store, &fakeEmbedder{embedding: models.Embedding{1, 0}}, nil, Config{})

	if svc.Loading() {
		t.Error("Loading should be false before any fetch")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.EGW(context.Background())
	}()

	for i := 0; !svc.Loading(); i++ {
		if i > 1000 {
			t.Fatal("Loading never became true")
		}
		time.Sleep(time.Millisecond)
	}

	close(store.block)
	<-done

	if svc.Loading() {
		t.Error("Loading should be false after the fetch settles")
	}
}

func TestCMSStoreBibleMapping(t *testing.T) {
	v := models.Verse{Book: "John", Chapter: 3, Verse: 16, Text: "For God so loved", Embedding: models.Embedding{1}}
	le := v.Labeled()
	if le.Label != "John 3:16" {
		t.Errorf("Label = %q, want John 3:16", le.Label)
	}
	if le.Source != v.Text {
		t.Errorf("Source = %q", le.Source)
	}
}
