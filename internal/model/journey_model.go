package model

import (
	"time"

	"github.com/google/uuid"
)

type Journey struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Slug         string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name         string    `gorm:"type:varchar(255);not null"`
	SystemPrompt string    `gorm:"type:text"`
	IsActive     bool      `gorm:"default:true;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (Journey) TableName() string {
	return "journeys"
}
