package nodes

import (
	"context"
	"fmt"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/tools"

	"github.com/google/uuid"
)

const DefaultMaxToolRounds = 5

type ModelConfig struct {
	// MaxToolRounds caps tool executions per turn.
	MaxToolRounds int
	// AssistantName is stamped on replies as the author name.
	AssistantName string
}

// CallModel sends the dialogue to the provider with the registry's tools bound.
func CallModel(provider llm.LLMProvider, registry *tools.Registry, cfg ModelConfig, log logger.ILogger) graph.NodeFunc {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}

	return func(ctx context.Context, state graph.State, run graph.RunConfig) (graph.State, error) {
		var opts []llm.Option
		if registry != nil {
			if defs := registry.Definitions(); len(defs) > 0 {
				opts = append(opts, llm.WithTools(defs...))
			}
		}

		reply, err := provider.Chat(ctx, state.Messages, opts...)
		if err != nil {
			return state, fmt.Errorf("call model: %w", err)
		}
		if reply.HasToolCalls() && state.ToolRounds >= cfg.MaxToolRounds {
			return state, fmt.Errorf("%w: model requested tools after %d rounds", graph.ErrToolLoopExceeded, state.ToolRounds)
		}

		if reply.ID == "" {
			reply.ID = uuid.NewString()
		}
		reply.Role = llm.RoleAI
		if reply.Name == "" {
			reply.Name = cfg.AssistantName
		}
		state.AddMessages(reply)

		log.Debug(moduleName, "Model replied", map[string]interface{}{
			"thread_id":  run.ThreadID,
			"tool_calls": len(reply.ToolCalls),
			"tool_round": state.ToolRounds,
		})
		return state, nil
	}
}

// RouteAfterModel sends tool calls to the executor and everything else to memory extraction.
func RouteAfterModel(state graph.State) string {
	last, ok := state.LastMessage()
	if ok && last.HasToolCalls() {
		return graph.NodeExecuteTools
	}
	return graph.NodeExtractMemories
}
