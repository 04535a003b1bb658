package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"sdm-platform-be/internal/entity"
	"sdm-platform-be/internal/repository/contract"
	"sdm-platform-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ConversationStore keeps conversation metadata in process when no database is configured.
// Only the thread, user and journey specifications are understood; others are ignored.
type ConversationStore struct {
	mu    sync.RWMutex
	items map[string]entity.Conversation
}

var _ contract.ConversationRepository = (*ConversationStore)(nil)

func NewConversationStore() *ConversationStore {
	return &ConversationStore{items: make(map[string]entity.Conversation)}
}

func (s *ConversationStore) Create(_ context.Context, conversation *entity.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conversation.Id == uuid.Nil {
		conversation.Id = uuid.New()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}
	s.items[conversation.ThreadId] = *conversation
	return nil
}

func (s *ConversationStore) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	all, _ := s.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (s *ConversationStore) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Conversation
	for _, c := range s.items {
		if matches(c, specs) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *ConversationStore) RecordMessages(_ context.Context, threadID string, count int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[threadID]
	if !ok {
		return nil
	}
	c.MessageCount += count
	c.LastMessageAt = &at
	s.items[threadID] = c
	return nil
}

func (s *ConversationStore) DeleteByThreadID(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, threadID)
	return nil
}

func matches(c entity.Conversation, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.ByThreadID:
			if c.ThreadId != sp.ThreadID {
				return false
			}
		case specification.ByUserID:
			if c.UserId != sp.UserID {
				return false
			}
		case specification.ByJourneySlug:
			if c.JourneySlug != sp.JourneySlug {
				return false
			}
		}
	}
	return true
}
