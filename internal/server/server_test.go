// ABOUTME: Handler tests for the HTTP surface
// ABOUTME: Fake searcher/transcriber behind httptest requests
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/cevr/bible-tools/internal/corpus"
	"github.com/cevr/bible-tools/internal/media"
	"github.com/cevr/bible-tools/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSearcher struct {
	result  corpus.SearchResult
	err     error
	loading bool
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (corpus.SearchResult, error) {
	return f.result, f.err
}

func (f *fakeSearcher) Loading() bool { return f.loading }

type fakeTranscriber struct {
	result media.Transcription
	err    error
}

func (f *fakeTranscriber) SummaryTranscription(ctx context.Context, url string) (media.Transcription, error) {
	return f.result, f.err
}

func do(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRootRedirects(t *testing.T) {
	router := New(&fakeSearcher{}, &fakeTranscriber{})
	w := do(t, router, "/")
	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != projectURL {
		t.Errorf("Location = %q", loc)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		loading  bool
		wantCode int
		wantOK   bool
	}{
		{"idle", false, http.StatusOK, true},
		{"loading", true, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := New(&fakeSearcher{loading: tt.loading}, &fakeTranscriber{})
			w := do(t, router, "/health")
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var body map[string]bool
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if body["ok"] != tt.wantOK {
				t.Errorf("ok = %v, want %v", body["ok"], tt.wantOK)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	searcher := &fakeSearcher{result: corpus.SearchResult{
		EGW:   []models.Passage{{Label: "DA 1.1", Source: "text"}},
		Bible: []models.Passage{},
	}}
	router := New(searcher, &fakeTranscriber{})

	w := do(t, router, "/search?q=light")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var result corpus.SearchResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if len(result.EGW) != 1 || result.EGW[0].Label != "DA 1.1" {
		t.Errorf("EGW = %v", result.EGW)
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	router := New(&fakeSearcher{}, &fakeTranscriber{})
	w := do(t, router, "/search")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected error field in body")
	}
}

func TestSearch_UpstreamFailure(t *testing.T) {
	router := New(&fakeSearcher{err: errors.New("cms down")}, &fakeTranscriber{})
	w := do(t, router, "/search?q=light")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestTranscribe(t *testing.T) {
	tr := &fakeTranscriber{result: media.Transcription{
		Transcription: "the transcript",
		Summary:       "the summary",
	}}
	router := New(&fakeSearcher{}, tr)

	w := do(t, router, "/transcribe?url=https%3A%2F%2Fwww.youtube.com%2Fwatch%3Fv%3Dabc")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var result media.Transcription
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if result.Transcription != "the transcript" || result.Summary != "the summary" {
		t.Errorf("result = %+v", result)
	}
}

func TestTranscribe_InvalidURL(t *testing.T) {
	router := New(&fakeSearcher{}, &fakeTranscriber{})

	for _, path := range []string{"/transcribe", "/transcribe?url=not-a-url"} {
		w := do(t, router, path)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s: status = %d, want 500", path, w.Code)
		}
	}
}

func TestTranscribe_PipelineFailure(t *testing.T) {
	router := New(&fakeSearcher{}, &fakeTranscriber{err: errors.New("yt-dlp exploded")})
	w := do(t, router, "/transcribe?url=https%3A%2F%2Fyoutu.be%2Fabc")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["message"] != "Could not transcribe" {
		t.Errorf("message = %q", body["message"])
	}
}
