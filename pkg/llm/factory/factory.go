package factory

import (
	"fmt"

	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/llm/anthropic"
	"sdm-platform-be/pkg/llm/ollama"
	"sdm-platform-be/pkg/llm/openai"
)

const huggingFaceRouterURL = "https://router.huggingface.co/v1"

// NewLLMProvider selects a chat backend by name. baseURL is optional for hosted providers.
func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return openai.NewProvider(apiKey, baseURL, modelName), nil
	case "huggingface":
		// The Hugging Face router speaks the OpenAI chat completions API.
		if apiKey == "" {
			return nil, fmt.Errorf("huggingface provider requires an API key")
		}
		if baseURL == "" {
			baseURL = huggingFaceRouterURL
		}
		return openai.NewProvider(apiKey, baseURL, modelName), nil
	case "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return anthropic.NewProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
