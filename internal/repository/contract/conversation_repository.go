package contract

import (
	"context"
	"time"

	"sdm-platform-be/internal/entity"
	"sdm-platform-be/internal/repository/specification"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error)
	// RecordMessages bumps the message counter of a thread and stamps the last message time.
	RecordMessages(ctx context.Context, threadID string, count int, at time.Time) error
	DeleteByThreadID(ctx context.Context, threadID string) error
}
