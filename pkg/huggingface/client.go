// Package huggingface provides a minimal client for the Hugging Face
// dataset hub: listing repository trees and building resolve URLs for
// file downloads.
package huggingface

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the public Hugging Face hub endpoint.
const DefaultBaseURL = "https://huggingface.co"

// Client defines the dataset hub operations used by the downloader.
type Client interface {
	// ListTree lists the entries under treePath in a dataset repository.
	// An empty treePath lists the repository root. Listing is recursive;
	// directory entries are included alongside files.
	ListTree(ctx context.Context, repo, revision, treePath string) ([]TreeEntry, error)

	// ResolveURL returns the direct download URL for a file in a dataset
	// repository.
	ResolveURL(repo, revision, filePath string) string
}

// TreeEntry is a single file or directory in a dataset repository tree.
type TreeEntry struct {
	Type string   `json:"type"` // "file" or "directory"
	Path string   `json:"path"`
	Size int64    `json:"size"`
	OID  string   `json:"oid"`
	LFS  *LFSInfo `json:"lfs,omitempty"`
}

// LFSInfo describes the LFS object backing large files. For LFS-tracked
// files Size on the entry is the pointer size; the real size lives here.
type LFSInfo struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

// FileSize returns the real size of the entry, preferring the LFS object
// size when present.
func (e *TreeEntry) FileSize() int64 {
	if e.LFS != nil {
		return e.LFS.Size
	}
	return e.Size
}

// IsFile reports whether the entry is a downloadable file.
func (e *TreeEntry) IsFile() bool {
	return e.Type == "file"
}

// Option configures the Hugging Face client.
type Option func(*httpClient)

// WithBaseURL sets a custom hub base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Hugging Face hub client. Public datasets need no
// token; pass "" for anonymous access.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff retries on
// transient failures (429, 500, 502, 503). Returns the response body and
// status code on success, or the last error after exhausting retries.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "huggingface: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("huggingface: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) ListTree(ctx context.Context, repo, revision, treePath string) ([]TreeEntry, error) {
	if revision == "" {
		revision = "main"
	}
	reqURL := fmt.Sprintf("%s/api/datasets/%s/tree/%s", c.baseURL, repo, revision)
	if p := strings.Trim(treePath, "/"); p != "" {
		reqURL += "/" + p
	}
	reqURL += "?recursive=true"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "huggingface: create tree request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "huggingface: list tree %s@%s", repo, revision)
	}

	if statusCode == http.StatusNotFound {
		return nil, eris.Errorf("huggingface: dataset %s@%s has no path %q", repo, revision, treePath)
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("huggingface: list tree unexpected status %d: %s", statusCode, string(body))
	}

	var entries []TreeEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, eris.Wrap(err, "huggingface: unmarshal tree response")
	}

	return entries, nil
}

// ResolveURL returns the direct download URL for a dataset file, in the
// hub's resolve format. The download=1 query asks the hub to redirect to
// the raw bytes rather than render an LFS pointer page.
func (c *httpClient) ResolveURL(repo, revision, filePath string) string {
	if revision == "" {
		revision = "main"
	}
	return fmt.Sprintf("%s/datasets/%s/resolve/%s/%s?download=1",
		c.baseURL, repo, revision, strings.TrimPrefix(filePath, "/"))
}
