package memory

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"sdm-platform-be/pkg/memory"

	"github.com/patrickmn/go-cache"
)

const keySeparator = "\x00"

// MemoryStore is an in-process memory.Store for development and tests.
// Items never expire.
type MemoryStore struct {
	cache *cache.Cache
	now   func() time.Time
}

var _ memory.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, 0),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func cacheKey(ns memory.Namespace, key string) string {
	return ns.String() + keySeparator + key
}

func (s *MemoryStore) Get(_ context.Context, ns memory.Namespace, key string) (*memory.Item, error) {
	if x, found := s.cache.Get(cacheKey(ns, key)); found {
		item := x.(memory.Item)
		item.Value = append(json.RawMessage(nil), item.Value...)
		return &item, nil
	}
	return nil, nil
}

func (s *MemoryStore) Put(_ context.Context, ns memory.Namespace, key string, value json.RawMessage) error {
	now := s.now()
	item := memory.Item{
		Namespace: append(memory.Namespace(nil), ns...),
		Key:       key,
		Value:     append(json.RawMessage(nil), value...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if x, found := s.cache.Get(cacheKey(ns, key)); found {
		item.CreatedAt = x.(memory.Item).CreatedAt
	}
	s.cache.Set(cacheKey(ns, key), item, cache.NoExpiration)
	return nil
}

func (s *MemoryStore) Search(_ context.Context, ns memory.Namespace) ([]memory.Item, error) {
	var items []memory.Item
	for _, x := range s.cache.Items() {
		item := x.Object.(memory.Item)
		if !item.Namespace.HasPrefix(ns) {
			continue
		}
		item.Value = append(json.RawMessage(nil), item.Value...)
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i].Namespace.String(), items[j].Namespace.String()
		if a != b {
			return a < b
		}
		return items[i].Key < items[j].Key
	})
	return items, nil
}

func (s *MemoryStore) Delete(_ context.Context, ns memory.Namespace, key string) error {
	s.cache.Delete(cacheKey(ns, key))
	return nil
}
