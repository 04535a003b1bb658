package nodes

import (
	"context"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/jobs"
	"sdm-platform-be/pkg/llm"
)

// ExtractionWindow is how many recent messages an extraction job sees.
const ExtractionWindow = 50

// ExtractMemories hands the recent dialogue to the extraction worker. It never
// changes the state and never fails the turn.
func ExtractMemories(queue jobs.Queue, log logger.ILogger) graph.NodeFunc {
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		if cfg.UserID == "" {
			log.Warn(moduleName, "No user id, skipping memory extraction", map[string]interface{}{
				"thread_id": cfg.ThreadID,
			})
			return state, nil
		}
		if queue == nil {
			return state, nil
		}

		window := state.Messages
		if len(window) > ExtractionWindow {
			window = window[len(window)-ExtractionWindow:]
		}
		job := jobs.ExtractionJob{
			UserID:      cfg.UserID,
			JourneySlug: cfg.JourneySlug,
			ThreadID:    cfg.ThreadID,
			Messages:    make([]jobs.ExtractionMessage, 0, len(window)),
		}
		for _, m := range window {
			if m.Content == "" || m.Role == llm.RoleSystem {
				continue
			}
			job.Messages = append(job.Messages, jobs.ExtractionMessage{Role: string(m.Role), Content: m.Content})
		}

		if err := queue.Enqueue(ctx, job); err != nil {
			log.Error(moduleName, "Failed to enqueue memory extraction", map[string]interface{}{
				"thread_id": cfg.ThreadID,
				"error":     err.Error(),
			})
		}
		return state, nil
	}
}
