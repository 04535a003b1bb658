package contract

import "sdm-platform-be/pkg/memory"

// ConversationPointRepository serves the journey point catalog.
type ConversationPointRepository interface {
	memory.PointCatalog
}
