package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MemoryItem struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Namespace string         `gorm:"type:text;not null;uniqueIndex:idx_memory_namespace_key,priority:1"`
	Key       string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_memory_namespace_key,priority:2"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (MemoryItem) TableName() string {
	return "memory_items"
}
