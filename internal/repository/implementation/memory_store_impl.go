package implementation

import (
	"context"
	"encoding/json"
	"errors"

	"sdm-platform-be/internal/model"
	"sdm-platform-be/internal/repository/specification"
	"sdm-platform-be/pkg/memory"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemoryStoreImpl is the Postgres backed memory.Store.
type MemoryStoreImpl struct {
	db *gorm.DB
}

var _ memory.Store = (*MemoryStoreImpl)(nil)

func NewMemoryStore(db *gorm.DB) *MemoryStoreImpl {
	return &MemoryStoreImpl{db: db}
}

func (s *MemoryStoreImpl) Get(ctx context.Context, ns memory.Namespace, key string) (*memory.Item, error) {
	var m model.MemoryItem
	query := specification.ByNamespaceKey{Namespace: ns.String(), Key: key}.Apply(s.db.WithContext(ctx))
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	item := toItem(&m)
	return &item, nil
}

func (s *MemoryStoreImpl) Put(ctx context.Context, ns memory.Namespace, key string, value json.RawMessage) error {
	m := &model.MemoryItem{
		Namespace: ns.String(),
		Key:       key,
		Value:     []byte(value),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(m).Error
}

func (s *MemoryStoreImpl) Search(ctx context.Context, ns memory.Namespace) ([]memory.Item, error) {
	var models []*model.MemoryItem
	query := specification.UnderNamespace{Namespace: ns.String()}.Apply(s.db.WithContext(ctx))
	query = specification.OrderBy{Field: "key"}.Apply(query)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]memory.Item, 0, len(models))
	for _, m := range models {
		items = append(items, toItem(m))
	}
	return items, nil
}

func (s *MemoryStoreImpl) Delete(ctx context.Context, ns memory.Namespace, key string) error {
	query := specification.ByNamespaceKey{Namespace: ns.String(), Key: key}.Apply(s.db.WithContext(ctx))
	return query.Delete(&model.MemoryItem{}).Error
}

func toItem(m *model.MemoryItem) memory.Item {
	return memory.Item{
		Namespace: memory.ParseNamespace(m.Namespace),
		Key:       m.Key,
		Value:     json.RawMessage(m.Value),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
