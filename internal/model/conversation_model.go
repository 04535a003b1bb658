package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation links a thread to its user and journey and keeps turn analytics.
type Conversation struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ThreadId      string         `gorm:"type:varchar(255);not null;uniqueIndex"`
	UserId        string         `gorm:"type:varchar(255);not null;index"`
	JourneySlug   string         `gorm:"type:varchar(100);index"`
	SystemPrompt  string         `gorm:"type:text"`
	MessageCount  int            `gorm:"default:0"`
	LastMessageAt *time.Time     `gorm:"type:timestamptz"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (Conversation) TableName() string {
	return "conversations"
}
