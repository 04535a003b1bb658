package contract

import (
	"context"

	"sdm-platform-be/internal/entity"
)

type JourneyRepository interface {
	// FindActiveJourney returns (nil, nil) for an unknown or inactive journey.
	FindActiveJourney(ctx context.Context, slug string) (*entity.Journey, error)
}
