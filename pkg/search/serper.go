// Package search queries the Serper.dev Google search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// DefaultBaseURL is the Serper API endpoint.
const DefaultBaseURL = "https://google.serper.dev"

// ErrNoAPIKey is returned when no Serper API key is configured.
var ErrNoAPIKey = errors.New("serper API key not configured")

// Doer is satisfied by *http.Client and *httpcache.CachedHTTPClient.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to Serper.
type Client struct {
	http    Doer
	logger  *slog.Logger
	apiKey  string
	baseURL string
	delay   time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets the transport, usually a cached client.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		c.http = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetryDelay sets the initial backoff between transport retries.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.delay = d
	}
}

// New creates a Serper client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
		delay:   250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type organicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Organic []organicResult `json:"organic"`
}

type imageResult struct {
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
}

type imagesResponse struct {
	Images []imageResult `json:"images"`
}

// Search runs a web search and returns every organic snippet joined by a space.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	var resp searchResponse
	if err := c.post(ctx, "/search", query, &resp); err != nil {
		return "", err
	}

	snippets := make([]string, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		snippets = append(snippets, r.Snippet)
	}
	c.logger.Debug("serper search", "query", query, "results", len(resp.Organic))
	return strings.Join(snippets, " "), nil
}

// Image runs an image search and returns the first image URL, or "".
func (c *Client) Image(ctx context.Context, query string) (string, error) {
	var resp imagesResponse
	if err := c.post(ctx, "/images", query, &resp); err != nil {
		return "", err
	}
	if len(resp.Images) == 0 {
		return "", nil
	}
	return resp.Images[0].ImageURL, nil
}

func (c *Client) post(ctx context.Context, path, query string, out any) error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}

	payload, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return fmt.Errorf("encoding query: %w", err)
	}
	endpoint := c.baseURL + path

	var body []byte
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("X-API-KEY", c.apiKey)
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if err := resp.Body.Close(); err != nil {
					c.logger.Debug("failed to close response body", "error", err)
				}
			}()

			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			switch {
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
				return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(b), 200))
			case resp.StatusCode != http.StatusOK:
				return retry.Unrecoverable(fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(b), 200)))
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(c.delay),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(c.delay/2+time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying serper request", "attempt", n+1, "path", path, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("serper %s: %w", path, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding serper %s response: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
