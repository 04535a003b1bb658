package memory

import (
	"context"
	"sort"
	"sync"

	"sdm-platform-be/internal/entity"
	"sdm-platform-be/internal/repository/contract"
	"sdm-platform-be/pkg/memory"
	"sdm-platform-be/pkg/tools"
)

// CatalogStore serves journeys, conversation points and decision aids from process memory.
type CatalogStore struct {
	mu       sync.RWMutex
	journeys map[string]entity.Journey
	points   map[string][]memory.ConversationPoint
	aids     map[string]tools.DecisionAid
}

var (
	_ contract.JourneyRepository           = (*CatalogStore)(nil)
	_ contract.ConversationPointRepository = (*CatalogStore)(nil)
	_ contract.DecisionAidRepository       = (*CatalogStore)(nil)
)

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		journeys: make(map[string]entity.Journey),
		points:   make(map[string][]memory.ConversationPoint),
		aids:     make(map[string]tools.DecisionAid),
	}
}

func (s *CatalogStore) AddJourneys(journeys ...entity.Journey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range journeys {
		s.journeys[j.Slug] = j
	}
}

func (s *CatalogStore) FindActiveJourney(_ context.Context, slug string) (*entity.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.journeys[slug]
	if !ok || !j.IsActive {
		return nil, nil
	}
	return &j, nil
}

func (s *CatalogStore) AddPoints(points ...memory.ConversationPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.points[p.JourneySlug] = append(s.points[p.JourneySlug], p)
	}
	for slug := range s.points {
		list := s.points[slug]
		sort.SliceStable(list, func(i, j int) bool { return list[i].SortOrder < list[j].SortOrder })
	}
}

func (s *CatalogStore) AddAids(aids ...tools.DecisionAid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range aids {
		s.aids[a.Slug] = a
	}
}

func (s *CatalogStore) ListActive(_ context.Context, journeySlug string) ([]memory.ConversationPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []memory.ConversationPoint
	for _, p := range s.points[journeySlug] {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *CatalogStore) GetActive(ctx context.Context, journeySlug, pointSlug string) (*memory.ConversationPoint, error) {
	active, _ := s.ListActive(ctx, journeySlug)
	for _, p := range active {
		if p.Slug == pointSlug {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (s *CatalogStore) FindActiveBySlug(_ context.Context, slug string) (*tools.DecisionAid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	aid, ok := s.aids[slug]
	if !ok || !aid.IsActive {
		return nil, nil
	}
	return &aid, nil
}
