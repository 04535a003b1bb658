package memory

import (
	"context"

	"sdm-platform-be/internal/pkg/logger"
)

// DeleteUserMemories removes the user's profile and insights plus the journey scoped
// memories of every listed journey. Errors are logged and the remaining namespaces are
// still processed. It returns the number of deleted items.
func DeleteUserMemories(ctx context.Context, store Store, log logger.ILogger, userID string, journeySlugs []string) int {
	var namespaces []Namespace
	for _, t := range MemoryTypes {
		namespaces = append(namespaces, UserNamespace(userID, t, ""))
	}
	for _, slug := range journeySlugs {
		for _, t := range JourneyMemoryTypes {
			namespaces = append(namespaces, UserNamespace(userID, t, slug))
		}
	}

	encoded := EncodeUserID(userID)
	deleted := 0
	for _, ns := range namespaces {
		items, err := store.Search(ctx, ns)
		if err != nil {
			log.Error(moduleName, "Error listing memories for deletion", map[string]interface{}{
				"namespace": ns.String(),
				"user":      encoded,
				"error":     err.Error(),
			})
			continue
		}
		count := 0
		for _, item := range items {
			if err := store.Delete(ctx, item.Namespace, item.Key); err != nil {
				log.Error(moduleName, "Error deleting memory", map[string]interface{}{
					"namespace": item.Namespace.String(),
					"key":       item.Key,
					"error":     err.Error(),
				})
				continue
			}
			count++
		}
		deleted += count
		log.Info(moduleName, "Deleted memories", map[string]interface{}{
			"namespace": ns.String(),
			"user":      encoded,
			"count":     count,
		})
	}
	return deleted
}
