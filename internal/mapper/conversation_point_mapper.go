package mapper

import (
	"sdm-platform-be/internal/model"
	"sdm-platform-be/pkg/memory"
)

type ConversationPointMapper struct{}

func NewConversationPointMapper() *ConversationPointMapper {
	return &ConversationPointMapper{}
}

func (m *ConversationPointMapper) ToDomain(p *model.ConversationPoint) *memory.ConversationPoint {
	if p == nil {
		return nil
	}
	return &memory.ConversationPoint{
		Slug:                p.Slug,
		JourneySlug:         p.JourneySlug,
		Title:               p.Title,
		Description:         p.Description,
		ElicitationGoals:    []string(p.ElicitationGoals),
		ExampleQuestions:    []string(p.ExampleQuestions),
		SemanticKeywords:    []string(p.SemanticKeywords),
		ConfidenceThreshold: p.ConfidenceThreshold,
		SortOrder:           p.SortOrder,
		IsActive:            p.IsActive,
	}
}

func (m *ConversationPointMapper) ToDomains(points []*model.ConversationPoint) []memory.ConversationPoint {
	out := make([]memory.ConversationPoint, 0, len(points))
	for _, p := range points {
		out = append(out, *m.ToDomain(p))
	}
	return out
}
