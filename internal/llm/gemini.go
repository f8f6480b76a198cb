package llm

import (
	"context"
	"fmt"
	"log"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements Client and Embedder against the Gemini API.
type GeminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	embedName string
	modelName string
}

// NewGeminiClient creates a Gemini client with the given generation
// parameters applied to every request.
func NewGeminiClient(ctx context.Context, apiKey, modelName, embedName string, params GenerationParams) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key must not be empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(params.Temperature)
	model.SetTopP(params.TopP)
	model.SetTopK(params.TopK)
	model.SetMaxOutputTokens(params.MaxOutputTokens)

	return &GeminiClient{
		client:    client,
		model:     model,
		embedName: embedName,
		modelName: modelName,
	}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}

	log.Printf("[Gemini] Response received (%d chars)", len(text))
	return text, nil
}

// EmbedText returns the embedding vector for a single text.
func (c *GeminiClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	em := c.client.EmbeddingModel(c.embedName)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if res == nil || res.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned from gemini")
	}
	return res.Embedding.Values, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from gemini")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			return string(text), nil
		}
	}

	return "", fmt.Errorf("unexpected response format from gemini")
}

func (c *GeminiClient) Name() string {
	return fmt.Sprintf("Gemini (%s)", c.modelName)
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}
