package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ConversationPoint struct {
	Id                  uuid.UUID                   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	JourneySlug         string                      `gorm:"type:varchar(100);not null;uniqueIndex:idx_point_journey_slug,priority:1"`
	Slug                string                      `gorm:"type:varchar(100);not null;uniqueIndex:idx_point_journey_slug,priority:2"`
	Title               string                      `gorm:"type:varchar(255);not null"`
	Description         string                      `gorm:"type:text"`
	ElicitationGoals    datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	ExampleQuestions    datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	SemanticKeywords    datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	ConfidenceThreshold float64                     `gorm:"default:0.7"`
	SortOrder           int                         `gorm:"default:0"`
	IsActive            bool                        `gorm:"default:true;index"`
	CreatedAt           time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt           time.Time                   `gorm:"autoUpdateTime"`
}

func (ConversationPoint) TableName() string {
	return "conversation_points"
}
