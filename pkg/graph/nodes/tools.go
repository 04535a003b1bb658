package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/tools"
)

type toolFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ExecuteTools answers every tool call of the latest AI message with exactly one tool message.
func ExecuteTools(registry *tools.Registry, log logger.ILogger) graph.NodeFunc {
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		last, ok := state.LastMessage()
		if !ok || !last.HasToolCalls() {
			state.ToolRounds++
			return state, nil
		}

		shown := make(map[string]struct{}, len(state.TurnDecisionAids))
		for _, aid := range state.TurnDecisionAids {
			shown[aid.AidSlug] = struct{}{}
		}

		results := make([]llm.Message, 0, len(last.ToolCalls))
		for _, call := range last.ToolCalls {
			result := runTool(ctx, registry, call, log)

			payload, err := json.Marshal(result)
			if err != nil {
				payload, _ = json.Marshal(toolFailure{Error: fmt.Sprintf("Tool %s failed: %v", call.Name, err)})
			}
			msg := llm.NewToolMessage(call.ID, string(payload))
			msg.Name = call.Name
			results = append(results, msg)

			aid, isAid := result.(tools.DecisionAidResult)
			if !isAid || !aid.Success {
				continue
			}
			if _, dup := shown[aid.AidSlug]; dup {
				continue
			}
			shown[aid.AidSlug] = struct{}{}
			state.TurnDecisionAids = append(state.TurnDecisionAids, aid)
		}

		state.AddMessages(results...)
		state.ToolRounds++

		log.Debug(moduleName, "Executed tool calls", map[string]interface{}{
			"thread_id":  cfg.ThreadID,
			"tool_calls": len(last.ToolCalls),
			"tool_round": state.ToolRounds,
		})
		return state, nil
	}
}

func runTool(ctx context.Context, registry *tools.Registry, call llm.ToolCall, log logger.ILogger) (result interface{}) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error(moduleName, "Tool panicked", map[string]interface{}{
				"tool":  call.Name,
				"panic": fmt.Sprint(rec),
			})
			result = toolFailure{Error: fmt.Sprintf("Tool %s failed: %v", call.Name, rec)}
		}
	}()

	var tool tools.Tool
	found := false
	if registry != nil {
		tool, found = registry.Get(call.Name)
	}
	if !found {
		log.Warn(moduleName, "Model requested unknown tool", map[string]interface{}{"tool": call.Name})
		return toolFailure{Error: "Unknown tool: " + call.Name}
	}

	args := call.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}
	out, err := tool.Execute(ctx, args)
	if err != nil {
		log.Error(moduleName, "Tool failed", map[string]interface{}{
			"tool":  call.Name,
			"error": err.Error(),
		})
		return toolFailure{Error: fmt.Sprintf("Tool %s failed: %v", call.Name, err)}
	}
	return out
}
