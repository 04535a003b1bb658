package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Checkpoint is one persisted graph state. (thread_id, step) is unique so two writers
// racing on the same thread cannot both append the same step.
type Checkpoint struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ThreadId  string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_checkpoint_thread_step,priority:1"`
	Step      int            `gorm:"not null;uniqueIndex:idx_checkpoint_thread_step,priority:2"`
	Node      string         `gorm:"type:varchar(64);not null"`
	State     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (Checkpoint) TableName() string {
	return "graph_checkpoints"
}
