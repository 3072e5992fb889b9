// Package gemini provides a client for Google's Gemini AI API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

var (
	// ErrMaxRetries is returned when the API stays rate limited through every attempt.
	ErrMaxRetries = errors.New("max retries exceeded for Gemini API")
	// ErrNoJSON is returned when a response carries no JSON object.
	ErrNoJSON = errors.New("no JSON found in response")
	// ErrEmptyResponse is returned when the API answers without any text.
	ErrEmptyResponse = errors.New("empty response from Gemini API")
)

// Client generates text with a Gemini model.
type Client struct {
	models     contentGenerator
	cache      CacheInterface
	logger     *slog.Logger
	model      string
	attempts   uint
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithCache caches responses keyed by model and prompt.
func WithCache(cache CacheInterface) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetry sets the attempt count and the base delay for rate-limit backoff.
// The n-th retry waits delay * 2^n.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.retryDelay = delay
	}
}

// New creates a client. With an API key it talks to the Gemini API; without one
// it falls back to Vertex AI using Application Default Credentials.
func New(ctx context.Context, apiKey, model, gcpProject string, opts ...Option) (*Client, error) {
	c := newClient(nil, model, opts...)

	var config *genai.ClientConfig
	if apiKey != "" {
		config = &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  apiKey,
		}
		c.logger.Debug("using Gemini API with API key", "model", c.model)
	} else {
		project := gcpProject
		if project == "" {
			project = os.Getenv("GOOGLE_CLOUD_PROJECT")
		}
		config = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  project,
			Location: "us-central1",
		}
		c.logger.Info("using Vertex AI with Application Default Credentials", "project", project, "location", "us-central1")
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.models = client.Models
	return c, nil
}

func newClient(models contentGenerator, model string, opts ...Option) *Client {
	c := &Client{
		models:     models,
		model:      strings.TrimPrefix(model, "models/"),
		attempts:   5,
		retryDelay: 10 * time.Second,
		logger:     slog.Default(),
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate sends prompt to the model and returns the trimmed response text.
// Rate-limit errors (HTTP 429 or quota exhaustion) are retried with exponential
// backoff; any other error is returned immediately.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

// GenerateJSON sends prompt to the model and decodes the JSON object in the
// response into v. Responses that do not decode are never cached, and a cached
// response that fails to decode is replaced by a fresh one.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, v any) error {
	_, err := c.generate(ctx, prompt, func(text string) error {
		return DecodeJSON(text, v)
	})
	return err
}

func (c *Client) generate(ctx context.Context, prompt string, validate func(string) error) (string, error) {
	cacheName := "genai:" + c.model
	if c.cache != nil {
		if data, found := c.cache.APICall(cacheName, []byte(prompt)); found {
			var err error
			if validate != nil {
				err = validate(string(data))
			}
			if err == nil {
				c.logger.Debug("Gemini cache hit", "model", c.model, "length", len(data))
				return string(data), nil
			}
			c.logger.Warn("discarding invalid cached Gemini response", "model", c.model, "error", err)
		}
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	temperature := float32(0.4)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 2048,
	}

	var resp *genai.GenerateContentResponse
	err := retry.Do(
		func() error {
			var err error
			resp, err = c.models.GenerateContent(ctx, c.model, contents, config)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRateLimit),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("Gemini rate limit hit, backing off",
				"attempt", n+1,
				"max_attempts", c.attempts,
				"delay", c.retryDelay*time.Duration(1<<n),
				"error", err)
		}),
	)
	if err != nil {
		if IsRateLimit(err) {
			return "", fmt.Errorf("%w: %w", ErrMaxRetries, err)
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	c.logger.Debug("raw Gemini response", "model", c.model, "response_text", text)

	if validate != nil {
		if err := validate(text); err != nil {
			return "", err
		}
	}
	if c.cache != nil {
		if err := c.cache.SetAPICall(cacheName, []byte(prompt), []byte(text)); err != nil {
			c.logger.Debug("failed to cache Gemini response", "error", err)
		}
	}
	return text, nil
}

// IsRateLimit reports whether err is a 429 or quota error from the API.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(strings.ToLower(s), "quota")
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

var jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON pulls the JSON object out of a model response that may wrap it
// in prose or a ```json fence. Outside a fence the match is greedy: from the
// first '{' to the last '}'.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) && strings.HasPrefix(text, "{") {
		return text, nil
	}

	for _, fence := range []string{"```json", "```"} {
		start := strings.Index(text, fence)
		if start == -1 {
			continue
		}
		start += len(fence)
		if end := strings.Index(text[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(text[start : start+end])
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}

	if m := jsonObjectRegex.FindString(text); m != "" {
		return m, nil
	}
	return "", ErrNoJSON
}

// DecodeJSON extracts the JSON object from text and unmarshals it into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("parsing model JSON: %w", err)
	}
	return nil
}
