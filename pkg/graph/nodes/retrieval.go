package nodes

import (
	"context"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/llm"
	"sdm-platform-be/pkg/retrieval"
)

// EvidenceRanker is implemented by *retrieval.Ranker.
type EvidenceRanker interface {
	Rank(ctx context.Context, query, journeySlug string) []retrieval.Citation
}

// RetrieveAndAugment ranks evidence for the latest human message and rebuilds the
// turn-context system message at the head of the dialogue.
func RetrieveAndAugment(ranker EvidenceRanker, log logger.ILogger) graph.NodeFunc {
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		var citations []retrieval.Citation
		if human, ok := state.LastHumanMessage(); ok && ranker != nil {
			citations = ranker.Rank(ctx, human.Content, cfg.JourneySlug)
		} else {
			log.Debug(moduleName, "No human message, skipping retrieval", map[string]interface{}{
				"thread_id": cfg.ThreadID,
			})
		}
		state.TurnCitations = citations

		prompt, ok := retrieval.BuildContextPrompt(state.SystemPrompt, state.UserContext, citations)
		messages := make([]llm.Message, 0, len(state.Messages)+1)
		if ok {
			messages = append(messages, llm.NewSystemMessage(prompt).WithMetadata(graph.MetadataTurnContext, "true"))
		}
		for _, m := range state.Messages {
			if isTurnContext(m) {
				continue
			}
			messages = append(messages, m)
		}
		state.Messages = messages

		log.Debug(moduleName, "Augmented turn context", map[string]interface{}{
			"thread_id": cfg.ThreadID,
			"citations": len(citations),
		})
		return state, nil
	}
}

func isTurnContext(m llm.Message) bool {
	return m.Role == llm.RoleSystem && m.Metadata[graph.MetadataTurnContext] != ""
}
