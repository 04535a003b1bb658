package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"sdm-platform-be/pkg/llm"

	goanthropic "github.com/liushuangls/go-anthropic/v2"
)

type Provider struct {
	client    *goanthropic.Client
	modelName string
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(apiKey, baseURL, modelName string) *Provider {
	var opts []goanthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, goanthropic.WithBaseURL(baseURL))
	}
	return &Provider{
		client:    goanthropic.NewClient(apiKey, opts...),
		modelName: modelName,
	}
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Message, error) {
	options := llm.ApplyOptions(opts...)

	system, messages, err := toMessages(history)
	if err != nil {
		return llm.Message{}, err
	}

	model := p.modelName
	if options.Model != "" {
		model = options.Model
	}
	temperature := float32(options.Temperature)

	req := goanthropic.MessagesRequest{
		Model:       goanthropic.Model(model),
		System:      system,
		Messages:    messages,
		MaxTokens:   options.MaxTokens,
		Temperature: &temperature,
	}
	for _, def := range options.Tools {
		req.Tools = append(req.Tools, goanthropic.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.Parameters,
		})
	}

	resp, err := p.client.CreateMessages(ctx, req)
	if err != nil {
		return llm.Message{}, fmt.Errorf("anthropic create messages: %w", err)
	}

	var text strings.Builder
	reply := llm.NewAIMessage("")
	for _, content := range resp.Content {
		switch content.Type {
		case goanthropic.MessagesContentTypeText:
			if content.Text != nil {
				text.WriteString(*content.Text)
			}
		case goanthropic.MessagesContentTypeToolUse:
			if content.MessageContentToolUse == nil {
				continue
			}
			args := map[string]interface{}{}
			if len(content.MessageContentToolUse.Input) > 0 {
				if err := json.Unmarshal(content.MessageContentToolUse.Input, &args); err != nil {
					return llm.Message{}, fmt.Errorf("decode input for tool %s: %w", content.MessageContentToolUse.Name, err)
				}
			}
			reply.ToolCalls = append(reply.ToolCalls, llm.ToolCall{
				ID:        content.MessageContentToolUse.ID,
				Name:      content.MessageContentToolUse.Name,
				Arguments: args,
			})
		}
	}
	reply.Content = text.String()
	return reply, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	reply, err := p.Chat(ctx, []llm.Message{llm.NewHumanMessage(prompt)}, opts...)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// toMessages folds system messages into the top-level system prompt and groups
// consecutive tool results into one user turn, which the Messages API requires.
func toMessages(history []llm.Message) (string, []goanthropic.Message, error) {
	var systemParts []string
	var out []goanthropic.Message

	for _, msg := range history {
		switch msg.Role {
		case llm.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case llm.RoleHuman:
			out = append(out, goanthropic.Message{
				Role:    goanthropic.RoleUser,
				Content: []goanthropic.MessageContent{goanthropic.NewTextMessageContent(msg.Content)},
			})
		case llm.RoleAI:
			var contents []goanthropic.MessageContent
			if msg.Content != "" {
				contents = append(contents, goanthropic.NewTextMessageContent(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				contents = append(contents, goanthropic.MessageContent{
					Type: goanthropic.MessagesContentTypeToolUse,
					MessageContentToolUse: &goanthropic.MessageContentToolUse{
						ID:    call.ID,
						Name:  call.Name,
						Input: json.RawMessage(call.ArgumentsJSON()),
					},
				})
			}
			out = append(out, goanthropic.Message{Role: goanthropic.RoleAssistant, Content: contents})
		case llm.RoleTool:
			result := goanthropic.NewToolResultMessageContent(msg.ToolCallID, msg.Content, false)
			if n := len(out); n > 0 && out[n-1].Role == goanthropic.RoleUser && isToolResultTurn(out[n-1]) {
				out[n-1].Content = append(out[n-1].Content, result)
				continue
			}
			out = append(out, goanthropic.Message{
				Role:    goanthropic.RoleUser,
				Content: []goanthropic.MessageContent{result},
			})
		default:
			return "", nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	return strings.Join(systemParts, "\n\n"), out, nil
}

func isToolResultTurn(m goanthropic.Message) bool {
	for _, c := range m.Content {
		if c.Type != goanthropic.MessagesContentTypeToolResult {
			return false
		}
	}
	return len(m.Content) > 0
}
