package openai

import (
	"context"
	"errors"
	"fmt"

	"sdm-platform-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

type Provider struct {
	client    *goopenai.Client
	modelName string
}

var _ llm.LLMProvider = &Provider{}

// NewProvider builds a chat provider. baseURL may point at any OpenAI compatible endpoint.
func NewProvider(apiKey, baseURL, modelName string) *Provider {
	config := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Provider{
		client:    goopenai.NewClientWithConfig(config),
		modelName: modelName,
	}
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Message, error) {
	options := llm.ApplyOptions(opts...)

	messages := make([]goopenai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		converted, err := toChatMessage(msg)
		if err != nil {
			return llm.Message{}, err
		}
		messages = append(messages, converted)
	}

	model := p.modelName
	if options.Model != "" {
		model = options.Model
	}

	req := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
	}
	for _, def := range options.Tools {
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return llm.Message{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Message{}, errors.New("openai returned no choices")
	}

	choice := resp.Choices[0].Message
	reply := llm.NewAIMessage(choice.Content)
	for _, tc := range choice.ToolCalls {
		args, err := llm.ParseArguments(tc.Function.Arguments)
		if err != nil {
			return llm.Message{}, fmt.Errorf("decode arguments for tool %s: %w", tc.Function.Name, err)
		}
		reply.ToolCalls = append(reply.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return reply, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	reply, err := p.Chat(ctx, []llm.Message{llm.NewHumanMessage(prompt)}, opts...)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

func toChatMessage(msg llm.Message) (goopenai.ChatCompletionMessage, error) {
	switch msg.Role {
	case llm.RoleHuman:
		return goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: msg.Content}, nil
	case llm.RoleSystem:
		return goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: msg.Content}, nil
	case llm.RoleTool:
		return goopenai.ChatCompletionMessage{
			Role:       goopenai.ChatMessageRoleTool,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}, nil
	case llm.RoleAI:
		out := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: msg.Content}
		for _, call := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, goopenai.ToolCall{
				ID:   call.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      call.Name,
					Arguments: call.ArgumentsJSON(),
				},
			})
		}
		return out, nil
	}
	return goopenai.ChatCompletionMessage{}, fmt.Errorf("unsupported message role %q", msg.Role)
}
