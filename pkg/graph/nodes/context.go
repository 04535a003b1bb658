package nodes

import (
	"context"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/memory"
)

const moduleName = "graph.nodes"

// ProfileReader is the read side of memory.ProfileManager.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (*memory.UserProfile, error)
}

// LoadContext renders the user's profile into state.UserContext. Lookup failures
// degrade to an empty context.
func LoadContext(profiles ProfileReader, log logger.ILogger) graph.NodeFunc {
	return func(ctx context.Context, state graph.State, cfg graph.RunConfig) (graph.State, error) {
		state.UserContext = ""
		if cfg.UserID == "" || profiles == nil {
			return state, nil
		}

		profile, err := profiles.Get(ctx, cfg.UserID)
		if err != nil {
			log.Warn(moduleName, "Failed to load user profile", map[string]interface{}{
				"thread_id": cfg.ThreadID,
				"error":     err.Error(),
			})
			return state, nil
		}
		state.UserContext = memory.FormatForPrompt(profile)
		return state, nil
	}
}
