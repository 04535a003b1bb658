// Package llmtest provides an in-memory llm.LLMProvider for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"sdm-platform-be/pkg/llm"
)

var ErrScriptExhausted = errors.New("llmtest: no scripted reply left")

// Call is one recorded provider invocation.
type Call struct {
	History []llm.Message
	Options *llm.Options
	Prompt  string
}

// Provider replays scripted replies in order. Respond, when set, takes precedence.
type Provider struct {
	mu      sync.Mutex
	replies []llm.Message
	calls   []Call

	Respond func(history []llm.Message, opts *llm.Options) (llm.Message, error)
	// Generated answers Generate calls.
	Generated []string
	Err       error
}

func NewProvider(replies ...llm.Message) *Provider {
	return &Provider{replies: replies}
}

func (p *Provider) Chat(_ context.Context, history []llm.Message, options ...llm.Option) (llm.Message, error) {
	opts := llm.ApplyOptions(options...)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{History: append([]llm.Message(nil), history...), Options: opts})
	if p.Err != nil {
		return llm.Message{}, p.Err
	}
	if p.Respond != nil {
		return p.Respond(history, opts)
	}
	if len(p.replies) == 0 {
		return llm.Message{}, ErrScriptExhausted
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return reply, nil
}

func (p *Provider) Generate(_ context.Context, prompt string, options ...llm.Option) (string, error) {
	opts := llm.ApplyOptions(options...)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Prompt: prompt, Options: opts})
	if p.Err != nil {
		return "", p.Err
	}
	if len(p.Generated) == 0 {
		return "", ErrScriptExhausted
	}
	out := p.Generated[0]
	p.Generated = p.Generated[1:]
	return out, nil
}

// Calls returns a copy of the recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// ToolCallReply builds an AI message requesting one tool call.
func ToolCallReply(id, name string, args map[string]interface{}) llm.Message {
	m := llm.NewAIMessage("")
	m.ToolCalls = []llm.ToolCall{{ID: id, Name: name, Arguments: args}}
	return m
}
