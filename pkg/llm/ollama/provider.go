package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sdm-platform-be/pkg/llm"

	"github.com/google/uuid"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements LLMProvider
var _ llm.LLMProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function llm.ToolDefinition `json:"function"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Message, error) {
	options := llm.ApplyOptions(opts...)

	// Ollama has no call ids; tool results are matched back by tool name.
	callNames := make(map[string]string)
	ollamaMessages := make([]ollamaMessage, 0, len(history))
	for _, msg := range history {
		om := ollamaMessage{Content: msg.Content}
		switch msg.Role {
		case llm.RoleHuman:
			om.Role = "user"
		case llm.RoleAI:
			om.Role = "assistant"
			for _, call := range msg.ToolCalls {
				callNames[call.ID] = call.Name
				om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
					Function: ollamaFunctionCall{Name: call.Name, Arguments: call.Arguments},
				})
			}
		case llm.RoleSystem:
			om.Role = "system"
		case llm.RoleTool:
			om.Role = "tool"
			om.ToolName = callNames[msg.ToolCallID]
		default:
			return llm.Message{}, fmt.Errorf("unsupported message role %q", msg.Role)
		}
		ollamaMessages = append(ollamaMessages, om)
	}

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   false,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
		},
	}
	if options.MaxTokens > 0 {
		reqPayload.Options.NumPredict = options.MaxTokens
	}
	for _, def := range options.Tools {
		reqPayload.Tools = append(reqPayload.Tools, ollamaTool{Type: "function", Function: def})
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return llm.Message{}, fmt.Errorf("marshal request: %w", err)
	}

	url := o.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return llm.Message{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return llm.Message{}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Message{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return llm.Message{}, fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return llm.Message{}, fmt.Errorf("unmarshal response: %w", err)
	}

	reply := llm.NewAIMessage(ollamaResp.Message.Content)
	for _, tc := range ollamaResp.Message.ToolCalls {
		args := tc.Function.Arguments
		if args == nil {
			args = map[string]interface{}{}
		}
		reply.ToolCalls = append(reply.ToolCalls, llm.ToolCall{
			ID:        "call_" + uuid.NewString(),
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return reply, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	// Reuse Chat for simplicity as most new LLMs are chat-optimized
	reply, err := o.Chat(ctx, []llm.Message{llm.NewHumanMessage(prompt)}, opts...)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}
