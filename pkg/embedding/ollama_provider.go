package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// OllamaProvider embeds with a local Ollama model, nomic-embed-text by default.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (p *OllamaProvider) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	// nomic models are trained with these task prefixes.
	switch task {
	case TaskRetrievalQuery:
		text = "search_query: " + text
	case TaskRetrievalDocument:
		text = "search_document: " + text
	}

	var resp ollamaEmbedResponse
	if err := postJSON(ctx, p.client, p.baseURL+"/api/embed", nil, ollamaEmbedRequest{Model: p.model, Input: text}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed: no embeddings returned")
	}
	return Normalize(toFloat32(resp.Embeddings[0])), nil
}
