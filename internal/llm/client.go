package llm

import "context"

// Client is the abstraction for the external generative-text API.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Embedder produces embedding vectors for text. Only the MOA similarity
// enrichment uses this.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// GenerationParams are the sampling parameters sent with every prompt.
type GenerationParams struct {
	Temperature     float32
	TopP            float32
	TopK            int32
	MaxOutputTokens int32
}
