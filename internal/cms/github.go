// ABOUTME: Read-only client for the GitHub-backed embeddings CMS
// ABOUTME: Lists a contents directory and fetches each file as JSON
package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const userAgent = "cvr-bible-tools"

// DirListError reports a failed directory listing.
type DirListError struct {
	URL string
	Err error
}

func (e *DirListError) Error() string {
	return fmt.Sprintf("could not list CMS directory %s: %v", e.URL, e.Err)
}

func (e *DirListError) Unwrap() error { return e.Err }

// FileFetchError reports a failed fetch of one file within a directory.
type FileFetchError struct {
	Path string
	Err  error
}

func (e *FileFetchError) Error() string {
	return fmt.Sprintf("could not fetch CMS file %s: %v", e.Path, e.Err)
}

func (e *FileFetchError) Unwrap() error { return e.Err }

// dirEntry is the subset of the contents-API listing response we use.
type dirEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Client reads JSON documents out of a GitHub repository used as a CMS.
type Client struct {
	repo       string
	branch     string
	apiBase    string
	rawBase    string
	httpClient *http.Client
	maxRetries int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the GitHub API and raw-content hosts. Used in tests.
func WithBaseURLs(apiBase, rawBase string) Option {
	return func(c *Client) {
		c.apiBase = apiBase
		c.rawBase = rawBase
	}
}

// WithMaxRetries sets how many times a failed request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a CMS client for repo ("owner/name") at branch.
func NewClient(repo, branch string, opts ...Option) *Client {
	c := &Client{
		repo:       repo,
		branch:     branch,
		apiBase:    "https://api.github.com",
		rawBase:    "https://raw.githubusercontent.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getJSON fetches url and decodes the response body into out, retrying
// transient failures with exponential backoff.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)
	return backoff.Retry(attempt, policy)
}

// listDir returns the file entries of a CMS directory, in listing order.
func (c *Client) listDir(ctx context.Context, dir string) ([]dirEntry, error) {
	url := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s", c.apiBase, c.repo, dir, c.branch)
	var entries []dirEntry
	if err := c.getJSON(ctx, url, &entries); err != nil {
		return nil, &DirListError{URL: url, Err: err}
	}
	return entries, nil
}

// GetFile fetches one file from the CMS and decodes it into T.
func GetFile[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	url := fmt.Sprintf("%s/%s/%s/%s", c.rawBase, c.repo, c.branch, path)
	if err := c.getJSON(ctx, url, &out); err != nil {
		return out, &FileFetchError{Path: path, Err: err}
	}
	return out, nil
}

// GetDir lists dir and fetches every file in it, in listing order. One
// sub-slice per file. A single file failure fails the whole load; per-file
// progress is logged.
func GetDir[T any](ctx context.Context, c *Client, dir string) ([]T, error) {
	entries, err := c.listDir(ctx, dir)
	if err != nil {
		return nil, err
	}

	files := make([]T, 0, len(entries))
	for i, entry := range entries {
		if entry.Type != "" && entry.Type != "file" {
			continue
		}
		file, err := GetFile[T](ctx, c, dir+"/"+entry.Name)
		if err != nil {
			log.Printf("%s: failed to load %s", dir, entry.Name)
			return nil, err
		}
		files = append(files, file)
		log.Printf("%s: loaded %d/%d files", dir, i+1, len(entries))
	}
	return files, nil
}
