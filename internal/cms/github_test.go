// ABOUTME: Unit tests for the GitHub CMS client
// ABOUTME: Uses httptest servers for the contents API and raw host
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/cevr/bible-tools/internal/models"
)

type testHosts struct {
	api *httptest.Server
	raw *httptest.Server
}

func newTestHosts(t *testing.T, files map[string][]models.LabeledEmbedding) *testHosts {
	t.Helper()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var entries []dirEntry
		for name := range files {
			entries = append(entries, dirEntry{Name: name, Type: "file"})
		}
		// Deterministic listing order.
		for i := range entries {
			for j := i + 1; j < len(entries); j++ {
				if entries[j].Name < entries[i].Name {
					entries[i], entries[j] = entries[j], entries[i]
				}
			}
		}
		_ = json.NewEncoder(w).Encode(entries)
	}))
	t.Cleanup(api.Close)

	raw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, content := range files {
			if r.URL.Path == "/cevr/cms/main/embeddings/egw/"+name {
				_ = json.NewEncoder(w).Encode(content)
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(raw.Close)

	return &testHosts{api: api, raw: raw}
}

func TestGetDir(t *testing.T) {
	files := map[string][]models.LabeledEmbedding{
		"a.json": {{Label: "A 1.1", Source: "first", Embedding: models.Embedding{1, 0}}},
		"b.json": {{Label: "B 2.2", Source: "second", Embedding: models.Embedding{0, 1}}},
	}
	hosts := newTestHosts(t, files)
	c := NewClient("cevr/cms", "main", WithBaseURLs(hosts.api.URL, hosts.raw.URL))

	got, err := GetDir[[]models.LabeledEmbedding](context.Background(), c, "embeddings/egw")
	if err != nil {
		t.Fatalf("GetDir failed: %v", err)
	}

	want := [][]models.LabeledEmbedding{files["a.json"], files["b.json"]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetDir = %v, want %v", got, want)
	}
}

func TestGetDir_ListFailure(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(api.Close)

	c := NewClient("cevr/cms", "main", WithBaseURLs(api.URL, api.URL), WithMaxRetries(0))
	_, err := GetDir[[]models.LabeledEmbedding](context.Background(), c, "embeddings/egw")

	var dirErr *DirListError
	if !errors.As(err, &dirErr) {
		t.Fatalf("expected DirListError, got %v", err)
	}
}

func TestGetDir_FileFailureFailsLoad(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]dirEntry{{Name: "missing.json", Type: "file"}})
	}))
	t.Cleanup(api.Close)
	raw := httptest.NewServer(http.HandlerFunc(http.NotFound))
	t.Cleanup(raw.Close)

	c := NewClient("cevr/cms", "main", WithBaseURLs(api.URL, raw.URL), WithMaxRetries(0))
	_, err := GetDir[[]models.LabeledEmbedding](context.Background(), c, "embeddings/egw")

	var fileErr *FileFetchError
	if !errors.As(err, &fileErr) {
		t.Fatalf("expected FileFetchError, got %v", err)
	}
	if fileErr.Path != "embeddings/egw/missing.json" {
		t.Errorf("Path = %q", fileErr.Path)
	}
}

func TestGetJSON_RetriesTransientFailures(t *testing.T) {
	var hits int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	t.Cleanup(api.Close)

	c := NewClient("cevr/cms", "main", WithBaseURLs(api.URL, api.URL), WithMaxRetries(2))
	if _, err := c.listDir(context.Background(), "embeddings/egw"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
}

func TestGetDir_SkipsSubdirectories(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]dirEntry{{Name: "nested", Type: "dir"}})
	}))
	t.Cleanup(api.Close)

	c := NewClient("cevr/cms", "main", WithBaseURLs(api.URL, api.URL))
	got, err := GetDir[[]models.LabeledEmbedding](context.Background(), c, "embeddings/egw")
	if err != nil {
		t.Fatalf("GetDir failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no files, got %v", got)
	}
}
