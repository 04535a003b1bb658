package entity

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	Id            uuid.UUID
	ThreadId      string
	UserId        string
	JourneySlug   string
	SystemPrompt  string
	MessageCount  int
	LastMessageAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     *time.Time
	DeletedAt     *time.Time
	IsDeleted     bool
}
