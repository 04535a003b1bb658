package implementation

import (
	"context"
	"errors"

	"sdm-platform-be/internal/entity"
	"sdm-platform-be/internal/mapper"
	"sdm-platform-be/internal/model"
	"sdm-platform-be/internal/repository/contract"
	"sdm-platform-be/internal/repository/specification"

	"gorm.io/gorm"
)

type JourneyRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.JourneyMapper
}

func NewJourneyRepository(db *gorm.DB) contract.JourneyRepository {
	return &JourneyRepositoryImpl{
		db:     db,
		mapper: mapper.NewJourneyMapper(),
	}
}

func (r *JourneyRepositoryImpl) FindActiveJourney(ctx context.Context, slug string) (*entity.Journey, error) {
	var m model.Journey
	query := specification.ActiveOnly{}.Apply(specification.BySlug{Slug: slug}.Apply(r.db.WithContext(ctx)))
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}
