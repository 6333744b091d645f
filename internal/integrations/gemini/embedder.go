package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// TextEmbedder turns text into a retrieval query vector. Tests substitute
// a fake; production uses *Embedder.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder generates embeddings using Gemini.
type Embedder struct {
	client      *genai.Client
	model       string
	retryConfig RetryConfig
}

var _ TextEmbedder = (*Embedder)(nil)

// NewEmbedder creates a new embedder.
func NewEmbedder(apiKey, model string) (*Embedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if strings.TrimSpace(model) == "" {
		model = "text-embedding-004"
	}

	return &Embedder{
		client:      client,
		model:       model,
		retryConfig: DefaultRetryConfig(),
	}, nil
}

// Close closes the underlying client.
func (e *Embedder) Close() error {
	return e.client.Close()
}

// Model returns the embedding model in use.
func (e *Embedder) Model() string {
	return e.model
}

// Embed generates an embedding for a single text. Transient errors
// (429/5xx) are retried with exponential backoff.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	return withRetry(ctx, e.retryConfig, "Embed", func() ([]float32, error) {
		em := e.client.EmbeddingModel(e.model)
		res, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}

		if res.Embedding == nil || len(res.Embedding.Values) == 0 {
			return nil, fmt.Errorf("empty embedding returned")
		}

		return res.Embedding.Values, nil
	})
}
