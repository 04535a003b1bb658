package mapper

import (
	"sdm-platform-be/internal/entity"
	"sdm-platform-be/internal/model"
)

type JourneyMapper struct{}

func NewJourneyMapper() *JourneyMapper {
	return &JourneyMapper{}
}

func (m *JourneyMapper) ToEntity(j *model.Journey) *entity.Journey {
	if j == nil {
		return nil
	}
	return &entity.Journey{
		Slug:         j.Slug,
		Name:         j.Name,
		SystemPrompt: j.SystemPrompt,
		IsActive:     j.IsActive,
	}
}
