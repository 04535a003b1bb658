package implementation

import (
	"context"
	"errors"

	"sdm-platform-be/internal/mapper"
	"sdm-platform-be/internal/model"
	"sdm-platform-be/internal/repository/contract"
	"sdm-platform-be/internal/repository/specification"
	"sdm-platform-be/pkg/memory"

	"gorm.io/gorm"
)

type ConversationPointRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationPointMapper
}

func NewConversationPointRepository(db *gorm.DB) contract.ConversationPointRepository {
	return &ConversationPointRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationPointMapper(),
	}
}

func (r *ConversationPointRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ConversationPointRepositoryImpl) ListActive(ctx context.Context, journeySlug string) ([]memory.ConversationPoint, error) {
	var models []*model.ConversationPoint
	query := r.applySpecifications(r.db.WithContext(ctx),
		specification.ByJourneySlug{JourneySlug: journeySlug},
		specification.ActiveOnly{},
		specification.OrderBy{Field: "sort_order"},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToDomains(models), nil
}

func (r *ConversationPointRepositoryImpl) GetActive(ctx context.Context, journeySlug, pointSlug string) (*memory.ConversationPoint, error) {
	var m model.ConversationPoint
	query := r.applySpecifications(r.db.WithContext(ctx),
		specification.ByJourneySlug{JourneySlug: journeySlug},
		specification.BySlug{Slug: pointSlug},
		specification.ActiveOnly{},
	)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToDomain(&m), nil
}
