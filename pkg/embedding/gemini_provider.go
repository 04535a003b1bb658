package embedding

import (
	"context"
	"fmt"
	"net/http"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1"

type geminiPart struct {
	Text string `json:"text"`
}

type geminiEmbedRequest struct {
	Model   string `json:"model"`
	Content struct {
		Parts []geminiPart `json:"parts"`
	} `json:"content"`
	TaskType Task `json:"task_type,omitempty"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "text-embedding-004"
	}
	return &GeminiProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (p *GeminiProvider) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	req := geminiEmbedRequest{Model: "models/" + p.model, TaskType: task}
	req.Content.Parts = []geminiPart{{Text: text}}

	var resp geminiEmbedResponse
	endpoint := fmt.Sprintf("%s/models/%s:embedContent", p.baseURL, p.model)
	if err := postJSON(ctx, p.client, endpoint, map[string]string{"x-goog-api-key": p.apiKey}, req, &resp); err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini embed: no values returned")
	}
	return Normalize(resp.Embedding.Values), nil
}
