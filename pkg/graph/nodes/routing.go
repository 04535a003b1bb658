package nodes

import (
	"context"
	"strings"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/llm"
)

// AssistantTrigger must prefix a message for the assistant to answer in assistant mode.
const AssistantTrigger = "@llm"

// HumanTurn is a pass-through node; the mode's router decides whether the turn engages.
func HumanTurn() graph.NodeFunc {
	return func(_ context.Context, state graph.State, _ graph.RunConfig) (graph.State, error) {
		return state, nil
	}
}

// AssistantRouter engages only when the latest message is addressed to the assistant.
func AssistantRouter(log logger.ILogger) graph.RouteFunc {
	return func(state graph.State) string {
		last, ok := latestWithContent(state, log)
		if !ok {
			return graph.END
		}
		if strings.HasPrefix(strings.TrimSpace(last.Content), AssistantTrigger) {
			return graph.NodeRetrieveAndAugment
		}
		log.Debug(moduleName, "Message not addressed to assistant", map[string]interface{}{
			"message_id": last.ID,
		})
		return graph.END
	}
}

// AutonomousRouter answers every human message.
func AutonomousRouter(log logger.ILogger) graph.RouteFunc {
	return func(state graph.State) string {
		last, ok := latestWithContent(state, log)
		if !ok {
			return graph.END
		}
		if last.Role != llm.RoleHuman {
			log.Debug(moduleName, "Latest message is not from a human", map[string]interface{}{
				"message_id": last.ID,
				"role":       string(last.Role),
			})
			return graph.END
		}
		return graph.NodeRetrieveAndAugment
	}
}

func latestWithContent(state graph.State, log logger.ILogger) (llm.Message, bool) {
	last, ok := state.LastMessage()
	if !ok {
		log.Info(moduleName, "No messages in state, ending turn", nil)
		return llm.Message{}, false
	}
	if strings.TrimSpace(last.Content) == "" {
		log.Info(moduleName, "Latest message has no content, ending turn", map[string]interface{}{
			"message_id": last.ID,
		})
		return llm.Message{}, false
	}
	return last, true
}
