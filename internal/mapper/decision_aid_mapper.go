package mapper

import (
	"sdm-platform-be/internal/model"
	"sdm-platform-be/pkg/tools"
)

type DecisionAidMapper struct{}

func NewDecisionAidMapper() *DecisionAidMapper {
	return &DecisionAidMapper{}
}

func (m *DecisionAidMapper) ToDomain(a *model.DecisionAid) *tools.DecisionAid {
	if a == nil {
		return nil
	}
	return &tools.DecisionAid{
		ID:           a.Id.String(),
		Slug:         a.Slug,
		AidType:      a.AidType,
		Title:        a.Title,
		MediaURL:     a.MediaUrl,
		ThumbnailURL: a.ThumbnailUrl,
		AltText:      a.AltText,
		IsActive:     a.IsActive && !a.DeletedAt.Valid,
	}
}
