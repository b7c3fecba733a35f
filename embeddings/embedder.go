package embeddings

import (
	"context"
	"fmt"
	"math"
)

// Embedder turns text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Health checks that the service is reachable and the model is available.
	Health(ctx context.Context) error
	Model() string
}

// NewEmbedder creates a client for provider. An empty provider means
// keyword-only search and returns a nil Embedder.
func NewEmbedder(provider, baseURL, model, apiKey string) (Embedder, error) {
	if baseURL == "" {
		baseURL = GetDefaultURL(provider)
	}
	if model == "" {
		model = GetDefaultModel(provider)
	}
	switch provider {
	case "":
		return nil, nil
	case "ollama":
		return NewOllamaClient(baseURL, model), nil
	case "openai":
		return NewOpenAIClient(baseURL, model, apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: ollama, openai)", provider)
	}
}

// GetDefaultURL returns the default base URL for a given provider
func GetDefaultURL(provider string) string {
	switch provider {
	case "ollama":
		return "http://localhost:11434"
	case "openai":
		return "https://api.openai.com/v1"
	default:
		return ""
	}
}

// GetDefaultModel returns the default model name for a given provider
func GetDefaultModel(provider string) string {
	switch provider {
	case "ollama":
		return "nomic-embed-text"
	case "openai":
		return "text-embedding-3-small"
	default:
		return ""
	}
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1; mismatched or zero vectors give 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
