package embedding

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider generates embeddings with the OpenAI embeddings endpoint. The task is
// ignored since OpenAI models are symmetric.
type OpenAIProvider struct {
	client *goopenai.Client
	model  goopenai.EmbeddingModel
}

func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	config := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	m := goopenai.SmallEmbedding3
	if model != "" {
		m = goopenai.EmbeddingModel(model)
	}
	return &OpenAIProvider{
		client: goopenai.NewClientWithConfig(config),
		model:  m,
	}
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string, _ Task) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai returned no embeddings")
	}
	return Normalize(resp.Data[0].Embedding), nil
}
