package gemini

import (
	"context"

	"google.golang.org/genai"
)

// CacheInterface defines the cache operations needed by the Gemini client.
type CacheInterface interface {
	APICall(name string, payload []byte) ([]byte, bool)
	SetAPICall(name string, payload, data []byte) error
}

// contentGenerator is satisfied by *genai.Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}
