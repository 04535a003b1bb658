package implementation

import (
	"context"
	"errors"

	"sdm-platform-be/internal/mapper"
	"sdm-platform-be/internal/model"
	"sdm-platform-be/internal/repository/contract"
	"sdm-platform-be/internal/repository/specification"
	"sdm-platform-be/pkg/tools"

	"gorm.io/gorm"
)

type DecisionAidRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DecisionAidMapper
}

func NewDecisionAidRepository(db *gorm.DB) contract.DecisionAidRepository {
	return &DecisionAidRepositoryImpl{
		db:     db,
		mapper: mapper.NewDecisionAidMapper(),
	}
}

func (r *DecisionAidRepositoryImpl) FindActiveBySlug(ctx context.Context, slug string) (*tools.DecisionAid, error) {
	var m model.DecisionAid
	query := r.db.WithContext(ctx)
	for _, spec := range []specification.Specification{specification.BySlug{Slug: slug}, specification.ActiveOnly{}} {
		query = spec.Apply(query)
	}
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToDomain(&m), nil
}
