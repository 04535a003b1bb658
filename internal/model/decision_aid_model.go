package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DecisionAid struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Slug         string         `gorm:"type:varchar(100);not null;uniqueIndex"`
	AidType      string         `gorm:"type:varchar(32);not null"` // image, video, external_video, diagram
	Title        string         `gorm:"type:varchar(255);not null"`
	MediaUrl     string         `gorm:"type:text;not null"`
	ThumbnailUrl string         `gorm:"type:text"`
	AltText      string         `gorm:"type:text"`
	IsActive     bool           `gorm:"default:true;index"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (DecisionAid) TableName() string {
	return "decision_aids"
}
