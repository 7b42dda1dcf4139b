// Package blob talks to the external blob storage provider.
//
// Two ingestion paths are supported. Put streams bytes through this service
// to the provider and returns the stored object's URL. The client-upload path
// never moves bytes through this service: IssueClientToken hands the client a
// signed credential bound to one artifact slot, the client pushes bytes
// straight to the provider, and the provider reports back via an asynchronous
// upload-completed callback carrying the same token.
package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client wraps the blob storage provider's HTTP API.
type Client struct {
	baseURL    string
	token      string
	secret     []byte
	httpClient *http.Client
}

// Config holds configuration for the blob client.
type Config struct {
	// BaseURL is the provider's upload endpoint base (e.g. "https://blob.aiasylum.org").
	BaseURL string

	// Token is the server-side write credential sent on direct Put calls.
	Token string

	// TokenSecret signs client-upload tokens. Falls back to Token when empty.
	TokenSecret string

	// Timeout is the per-operation timeout. If zero, defaults to 60 seconds.
	Timeout time.Duration
}

// PutResult describes a stored blob.
type PutResult struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType,omitempty"`
}

// NewClient creates a blob storage client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("blob: BaseURL is required")
	}
	secret := cfg.TokenSecret
	if secret == "" {
		secret = cfg.Token
	}
	if secret == "" {
		return nil, fmt.Errorf("blob: Token or TokenSecret is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		secret:     []byte(secret),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Put streams reader to the provider under path and returns the blob URL.
// The body is consumed exactly once; no buffering happens here, so arbitrarily
// large payloads pass through in constant memory.
func (c *Client) Put(ctx context.Context, path string, reader io.Reader, contentType string) (*PutResult, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.UploadURL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create put request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Blob-Access", "public")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob put failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("blob put failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result PutResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode put response: %w", err)
	}
	if result.URL == "" {
		result.URL = c.UploadURL(path)
	}
	if result.Pathname == "" {
		result.Pathname = path
	}
	return &result, nil
}

// UploadURL returns the provider URL a client PUTs bytes to for path.
func (c *Client) UploadURL(path string) string {
	escaped := make([]string, 0, 4)
	for _, seg := range strings.Split(strings.TrimLeft(path, "/"), "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}
